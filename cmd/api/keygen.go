package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"zkloan/internal/domain/verification"
	"zkloan/internal/infrastructure/zk"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var keygenOut string

// keygenCmd runs a local, single-party setup. Its keys are only fit for
// development and tests.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate development Groth16 keys for the credit circuit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		keys, err := zk.Setup()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(keygenOut, 0o755); err != nil {
			return err
		}
		pkPath := filepath.Join(keygenOut, "credit_pk.bin")
		vkPath := filepath.Join(keygenOut, "credit_vk.bin")
		if err := writeKey(pkPath, keys.PK); err != nil {
			return err
		}
		if err := writeKey(vkPath, keys.VK); err != nil {
			return err
		}
		logger.Info("keys written", zap.String("pk", pkPath), zap.String("vk", vkPath))
		return nil
	},
}

func writeKey(path string, k io.WriterTo) error {
	var buf bytes.Buffer
	if _, err := k.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

var proveArgs struct {
	pk        string
	income    string
	debtRatio string
	model     string
	score     uint64
}

// proveCmd prints a request-ready proof and its public signals as JSON.
var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Prove a credit statement with a development proving key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var st zk.Statement
		for _, f := range []struct {
			name string
			raw  string
			dst  **big.Int
		}{
			{"income", proveArgs.income, &st.Income},
			{"debt-ratio", proveArgs.debtRatio, &st.DebtRatio},
			{"model", proveArgs.model, &st.ModelFingerprint},
		} {
			v, err := verification.ParseSignal(f.raw)
			if err != nil {
				return fmt.Errorf("--%s: %w", f.name, err)
			}
			*f.dst = v.ToBig()
		}
		st.Score = proveArgs.score

		raw, err := os.ReadFile(proveArgs.pk)
		if err != nil {
			return err
		}
		pk, err := zk.ReadProvingKey(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		cs, err := zk.Compile()
		if err != nil {
			return err
		}
		artifact, signals, err := zk.Prove(cs, pk, st)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"proof":          base64.StdEncoding.EncodeToString(artifact),
			"public_signals": signals,
			"credit_score":   st.Score,
		})
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOut, "out", "config", "directory for credit_pk.bin and credit_vk.bin")

	f := proveCmd.Flags()
	f.StringVar(&proveArgs.pk, "pk", "config/credit_pk.bin", "proving key file")
	f.StringVar(&proveArgs.income, "income", "", "monthly income (public)")
	f.StringVar(&proveArgs.debtRatio, "debt-ratio", "", "debt-to-income percentage (public)")
	f.StringVar(&proveArgs.model, "model", "", "committed model fingerprint, decimal or 0x-hex (public)")
	f.Uint64Var(&proveArgs.score, "score", 0, "credit score (private)")
	for _, name := range []string{"income", "debt-ratio", "model"} {
		_ = proveCmd.MarkFlagRequired(name)
	}
}
