package cmd

// RegisterAllCommands 注册全部命令
func RegisterAllCommands() {
	RegisterStrategiesCmd()
	RegisterAnalyzeCmd()
	RegisterRunCmd()
	RegisterReplayCmd()
	RegisterExitCmd()
	RegisterKlineCmd()
	RegisterPingCmd()
}
