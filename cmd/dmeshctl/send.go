package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/dmesh-net/dmesh-core/store"
	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/spf13/cobra"
)

var (
	sendTo          string
	sendPayloadType string
	sendUrgency     string
	sendTTL         time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <content>",
	Short: "Seal a message for a contact and place it in the outbox",
	Long: `Seal a message for the contact named by --to (a fingerprint hex string
already saved via "dmeshctl contact add") and add the resulting
dmesh-msg envelope to the local outbox, where it waits to be carried by
a transport adapter or a sync session.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient fingerprint (hex)")
	sendCmd.Flags().StringVar(&sendPayloadType, "type", wire.PayloadText, "payload type (text, im_safe, need_help, shelter_info, medical, supplies)")
	sendCmd.Flags().StringVar(&sendUrgency, "urgency", "", "urgency for need_help/medical payloads (low, medium, high, critical)")
	sendCmd.Flags().DurationVar(&sendTTL, "ttl", 0, "time-to-live (default: crypto.DefaultTTLMs)")
	sendCmd.MarkFlagRequired("to")
}

func runSend(cmd *cobra.Command, args []string) error {
	content := args[0]

	raw, err := hex.DecodeString(sendTo)
	if err != nil || len(raw) != 16 {
		return fmt.Errorf("--to must be a 16-byte hex fingerprint")
	}
	var fp [16]byte
	copy(fp[:], raw)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	keys, err := st.GetOwnKeys(ctx)
	if err != nil {
		return fmt.Errorf("no node identity yet: run 'dmeshctl keygen' first: %w", err)
	}
	contact, err := st.GetContact(ctx, fp)
	if err != nil {
		return fmt.Errorf("unknown contact %x: %w", fp, err)
	}

	signKP := &crypto.SigningKeyPair{Public: keys.SigningPublic, Private: keys.SigningPrivate}
	boxKP := &crypto.BoxKeyPair{Public: keys.BoxPublic, Private: keys.BoxPrivate}

	opts := crypto.EncryptOptions{PayloadType: sendPayloadType}
	if sendTTL > 0 {
		opts.TTLMs = int64(sendTTL / time.Millisecond)
	}
	if sendUrgency != "" {
		opts.PayloadExtra = map[string]interface{}{"urgency": sendUrgency}
	}

	env, err := crypto.Encrypt(content, signKP, boxKP, contact.BoxPK, opts)
	if err != nil {
		return fmt.Errorf("seal message: %w", err)
	}

	ct, err := wire.B64Decode(env.Ciphertext)
	if err != nil {
		return err
	}
	msgID := crypto.MessageID(ct)
	canonical, err := env.MarshalCanonical()
	if err != nil {
		return err
	}

	if err := st.AddOutbox(ctx, &store.OutboxEntry{
		MsgID: msgID, RecipientFp: fp, MessageEnvelope: canonical,
		CreatedAt: time.Now(), Status: store.StatusPending,
		Exp: env.Exp, PayloadType: sendPayloadType, Urgency: sendUrgency,
	}); err != nil {
		return fmt.Errorf("queue outbox entry: %w", err)
	}

	fmt.Printf("queued message %x for %x\n", msgID, fp)
	return nil
}
