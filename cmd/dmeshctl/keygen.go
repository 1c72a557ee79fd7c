package main

import (
	"context"
	"fmt"

	"github.com/dmesh-net/dmesh-core/crypto"
	"github.com/dmesh-net/dmesh-core/store"
	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/spf13/cobra"
)

var keygenName string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new node identity and store it",
	Long: `Generate a fresh Ed25519 signing pair and X25519 box pair, write them
to the store's Keys table, and print the resulting public identity
(dmesh-id) for sharing with a peer out of band.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenName, "name", "", "display name to embed in the shared identity")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	signKP, err := crypto.GenerateSignKeyPair()
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}
	boxKP, err := crypto.GenerateBoxKeyPair()
	if err != nil {
		return fmt.Errorf("generate box key: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.PutOwnKeys(ctx, &store.OwnKeys{
		SigningPublic:  signKP.Public,
		SigningPrivate: signKP.Private,
		BoxPublic:      boxKP.Public,
		BoxPrivate:     boxKP.Private,
		DisplayName:    keygenName,
	}); err != nil {
		return fmt.Errorf("save keys: %w", err)
	}

	fp := crypto.Fingerprint(signKP.Public[:])
	id := wire.NewPublicIdentity(keygenName, fp[:], signKP.Public[:], boxKP.Public[:])
	doc, err := id.MarshalCanonical()
	if err != nil {
		return err
	}

	fmt.Printf("generated identity, fingerprint %x\n", fp)
	fmt.Println(string(doc))
	return nil
}
