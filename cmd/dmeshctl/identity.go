package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/spf13/cobra"
)

var safetyNumberCmd = &cobra.Command{
	Use:   "safety-number <peer-fingerprint-hex>",
	Short: "Compute the safety number shared with a contact",
	Long: `Compute the out-of-band-comparable safety number for this node's
identity and a contact's fingerprint, so both sides can read the same
8-digit-group value aloud or compare it via a separate channel to rule
out a man-in-the-middle substitution.`,
	Args: cobra.ExactArgs(1),
	RunE: runSafetyNumber,
}

func init() {
	rootCmd.AddCommand(safetyNumberCmd)
}

func runSafetyNumber(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != 16 {
		return fmt.Errorf("fingerprint must be 16 bytes hex-encoded")
	}
	var peerFp [16]byte
	copy(peerFp[:], raw)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	keys, err := st.GetOwnKeys(context.Background())
	if err != nil {
		return fmt.Errorf("no node identity yet: run 'dmeshctl keygen' first: %w", err)
	}
	selfFp := crypto.Fingerprint(keys.SigningPublic[:])

	fmt.Println(crypto.SafetyNumber(selfFp, peerFp))
	return nil
}
