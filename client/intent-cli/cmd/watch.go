package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live change events for your projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()

		conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), c.wsURL(), nil)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer conn.Close()

		fmt.Println("WebSocket connected. Waiting for changes...")
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			var ev event
			if err := json.Unmarshal(message, &ev); err != nil {
				fmt.Printf("unrecognized message: %s\n", message)
				continue
			}
			fmt.Printf("%s  %-22s %s\n", ev.UpdatedAt.Local().Format("15:04:05.000"), ev.Type, ev.ProjectID)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
