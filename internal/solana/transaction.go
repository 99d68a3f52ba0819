package solana

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// decodeTransaction parses the base64 wire transaction a quote carries.
func decodeTransaction(data string) (*solanago.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, err
	}
	return solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
}

// signTransaction fills the keypair's signature slot. A transaction with
// other required signers keeps the signatures it arrived with.
func signTransaction(tx *solanago.Transaction, k *Keypair) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || required > len(tx.Message.AccountKeys) {
		return errors.New("transaction has no signer accounts")
	}
	slot := -1
	for i, key := range tx.Message.AccountKeys[:required] {
		if key.Equals(k.PublicKey()) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return fmt.Errorf("keypair %s is not a required signer", k.Address())
	}

	if required == 1 {
		tx.Signatures = nil
		_, err := tx.Sign(k.privateKey)
		return err
	}
	if len(tx.Signatures) != required {
		return fmt.Errorf("transaction has %d signature slots but requires %d signers", len(tx.Signatures), required)
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}
	sig, err := k.private.Sign(msg)
	if err != nil {
		return err
	}
	tx.Signatures[slot] = sig
	return nil
}
