package app

import (
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	CommandUI          Command = "ui"
	CommandServe       Command = "serve"
	CommandValidate    Command = "validate"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
	CommandHelp        Command = "help"
)

// commands はサブコマンドと説明の一覧。usageの表示順を兼ねる。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandUI, "open the terminal UI (default)"},
	{CommandServe, "run session sync and the OAuth callback server without the UI"},
	{CommandValidate, "check connectivity to Supabase (and DATABASE_URL if set) and print JSON"},
	{CommandMigrate, "apply user_settings migrations to DATABASE_URL"},
	{CommandHealthcheck, "probe the local server's /health endpoint (for Docker)"},
	{CommandHelp, "show this help"},
}

// ParseCommand はargsの先頭からサブコマンドを決める。
// 引数なし、または未知のサブコマンドはCommandUIとして扱う。
// "-h"と"--help"はCommandHelpになる。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandUI
	}
	switch args[0] {
	case "-h", "--help":
		return CommandHelp
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	return CommandUI
}

// writeUsage はサブコマンドの一覧をwに書き出す。
func writeUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: scurrysheets [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.desc)
	}
}
