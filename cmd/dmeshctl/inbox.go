package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List received, decrypted messages",
	RunE:  runInbox,
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "List queued outgoing messages and their delivery status",
	RunE:  runOutbox,
}

func init() {
	rootCmd.AddCommand(inboxCmd, outboxCmd)
}

func runInbox(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.AllInbox(context.Background())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("inbox is empty")
		return nil
	}
	for _, e := range entries {
		read := " "
		if e.Read {
			read = "r"
		}
		fmt.Printf("[%s] %x from %x (%s): %s\n", read, e.MsgID, e.SenderFp, e.PayloadType, e.Content)
	}
	return nil
}

func runOutbox(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.PendingOutbox(context.Background())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("outbox is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%x -> %x  %-10s attempts=%d\n", e.MsgID, e.RecipientFp, e.Status, e.Attempts)
	}
	return nil
}
