package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/methods/reference"
)

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	var (
		header      string
		nonce       int64
		nonceOffset int
		proofSize   int
	)

	cmd := &cobra.Command{
		Use:     "verify <nonce>...",
		Short:   "check a proof against the header's graph with the reference verifier",
		Example: "cuckoo-miner verify --sizeshift 12 --nonce 7 0x1f 0x3a ...",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			params, err := cfg.Params()
			if err != nil {
				return err
			}

			h := make([]byte, headerSize)
			if header != "" {
				if h, err = hex.DecodeString(header); err != nil {
					return fmt.Errorf("decode --header: %w", err)
				}
			}
			if nonce >= 0 {
				offset := nonceOffset
				if offset < 0 {
					offset = len(h) - 8
				}
				if offset < 0 || offset+8 > len(h) {
					return fmt.Errorf("nonce offset %d does not fit a %d-byte header", offset, len(h))
				}
				binary.BigEndian.PutUint64(h[offset:], uint64(nonce))
			}

			nonces, err := parseNonces(args)
			if err != nil {
				return err
			}
			if proofSize > 0 && len(nonces) != proofSize {
				return fmt.Errorf("%w: got %d nonces, want %d", reference.ErrProofLength, len(nonces), proofSize)
			}

			out := cmd.OutOrStdout()
			proof := core.NewProof(nonces)
			if err := reference.Verify(h, params, nonces); err != nil {
				fmt.Fprintf(out, "%s %s: %v\n", errorStyle.Render("invalid"), proof, err)
				return err
			}
			fmt.Fprintf(out, "%s %s for %s\n", okStyle.Render("valid"), proof, params.Tag())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&header, "header", "", "hex header (default: 80 zero bytes)")
	flags.Int64Var(&nonce, "nonce", -1, "header nonce to write before verifying (-1 leaves the header as given)")
	flags.IntVar(&nonceOffset, "nonce-offset", -1, "byte offset of the u64 nonce (default: last 8 bytes)")
	flags.IntVar(&proofSize, "proof-size", core.ProofSize, "required number of nonces (0 accepts any)")
	return cmd
}

// parseNonces accepts decimal or 0x-prefixed hex edge nonces
func parseNonces(args []string) ([]uint32, error) {
	nonces := make([]uint32, len(args))
	for i, arg := range args {
		n, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("nonce %d (%q): %w", i, arg, err)
		}
		nonces[i] = uint32(n)
	}
	return nonces, nil
}
