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

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manage known peer identities",
}

var addContactCmd = &cobra.Command{
	Use:   "add <identity.json-path|->",
	Short: "Add a contact from a shared dmesh-id document",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddContact,
}

var listContactsCmd = &cobra.Command{
	Use:   "list",
	Short: "List known contacts and their trust state",
	RunE:  runListContacts,
}

var verifyContactCmd = &cobra.Command{
	Use:   "verify <fingerprint-hex>",
	Short: "Mark a contact Verified (e.g. after an out-of-band safety number check)",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerifyContact,
}

func init() {
	rootCmd.AddCommand(contactCmd)
	contactCmd.AddCommand(addContactCmd, listContactsCmd, verifyContactCmd)
}

func runAddContact(cmd *cobra.Command, args []string) error {
	data, err := readArgOrStdin(args[0])
	if err != nil {
		return err
	}
	id, err := wire.ParsePublicIdentity(data)
	if err != nil {
		return fmt.Errorf("parse identity: %w", err)
	}

	signPK, err := wire.B64DecodeLen(id.SigningPK, crypto.SignPKLen)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	boxPK, err := wire.B64DecodeLen(id.BoxPK, crypto.BoxPKLen)
	if err != nil {
		return fmt.Errorf("box key: %w", err)
	}

	fp := crypto.Fingerprint(signPK)
	var signArr [32]byte
	var boxArr [32]byte
	copy(signArr[:], signPK)
	copy(boxArr[:], boxPK)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now()
	if err := st.SaveContact(context.Background(), &store.Contact{
		Fingerprint: fp, SigningPK: signArr, BoxPK: boxArr,
		DisplayName: id.Name, Verification: store.Unverified,
		AddedAt: now, UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("save contact: %w", err)
	}

	fmt.Printf("added contact %x (%s)\n", fp, id.Name)
	return nil
}

func runListContacts(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	contacts, err := st.AllContacts(context.Background())
	if err != nil {
		return err
	}
	for _, c := range contacts {
		fmt.Printf("%x  %-10s  %s\n", c.Fingerprint, c.Verification, c.DisplayName)
	}
	return nil
}

func runVerifyContact(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != 16 {
		return fmt.Errorf("fingerprint must be 16 bytes hex-encoded")
	}
	var fp [16]byte
	copy(fp[:], raw)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.VerifyContact(context.Background(), fp); err != nil {
		return err
	}
	fmt.Printf("contact %x marked Verified\n", fp)
	return nil
}
