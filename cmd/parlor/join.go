package main

import "github.com/spf13/cobra"

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join an existing room",
	Long: `Join a room hosted by someone else and open the lobby.

In online mode the room id is the host's endpoint address; in server
mode it is the join code the relay handed the host.

Examples:
  parlor join 127.0.0.1:52114 --mode online
  parlor join K3XQ7A --mode server`,
	Args: cobra.ExactArgs(1),
	Run:  runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&flagHostMode, "mode", "online", "Transport mode: online, server")
}

func runJoin(_ *cobra.Command, args []string) {
	runLobby(args[0])
}
