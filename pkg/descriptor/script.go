package descriptor

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// witnessScript compiles the descriptor for the given branch and index:
//
//	<P> IFDUP NOTIF <v:R> <timelock> CHECKSEQUENCEVERIFY ENDIF
func (d *Descriptor) witnessScript(branch int, index uint32) ([]byte, error) {
	primary, err := derivePubkeys(d.primary.keys, branch, index)
	if err != nil {
		return nil, err
	}
	recovery, err := derivePubkeys(d.recovery.keys, branch, index)
	if err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	if d.primary.IsSingleKey() {
		builder.
			AddData(primary[0].SerializeCompressed()).
			AddOp(txscript.OP_CHECKSIG)
	} else {
		addMulti(builder, d.primary.threshold, primary, txscript.OP_CHECKMULTISIG)
	}

	builder.AddOp(txscript.OP_IFDUP).AddOp(txscript.OP_NOTIF)

	if d.recovery.IsSingleKey() {
		builder.
			AddOp(txscript.OP_DUP).
			AddOp(txscript.OP_HASH160).
			AddData(btcutil.Hash160(recovery[0].SerializeCompressed())).
			AddOp(txscript.OP_EQUALVERIFY).
			AddOp(txscript.OP_CHECKSIGVERIFY)
	} else {
		addMulti(
			builder, d.recovery.threshold, recovery, txscript.OP_CHECKMULTISIGVERIFY,
		)
	}

	builder.
		AddInt64(int64(d.timelock)).
		AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

func addMulti(
	builder *txscript.ScriptBuilder, threshold int,
	pubkeys []*btcec.PublicKey, op byte,
) {
	builder.AddInt64(int64(threshold))
	for _, pubkey := range pubkeys {
		builder.AddData(pubkey.SerializeCompressed())
	}
	builder.AddInt64(int64(len(pubkeys))).AddOp(op)
}

func derivePubkeys(
	keys []*Key, branch int, index uint32,
) ([]*btcec.PublicKey, error) {
	pubkeys := make([]*btcec.PublicKey, 0, len(keys))
	for _, key := range keys {
		k, err := key.Branch(branch)
		if err != nil {
			return nil, err
		}
		pubkey, err := k.Derive(index)
		if err != nil {
			return nil, err
		}
		pubkeys = append(pubkeys, pubkey)
	}
	return pubkeys, nil
}

// countOps counts the non-push opcodes of the script. Keys of multisig
// opcodes are not included.
func countOps(script []byte) (int, error) {
	ops := 0
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if tokenizer.Opcode() > txscript.OP_16 {
			ops++
		}
	}
	return ops, tokenizer.Err()
}
