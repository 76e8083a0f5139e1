package discord

import logx "guildmirror/pkg/logx"

func nopLogger() logx.Logger { return logx.Nop() }
