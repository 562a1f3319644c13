package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moonsong-labs/fisherman/pkg/chainrpc"
	"github.com/moonsong-labs/fisherman/pkg/sdk"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

var sdkCmd = &cobra.Command{
	Use:   "sdk",
	Short: "Client-side file and deletion-request operations",
}

var sdkFingerprintCmd = &cobra.Command{
	Use:   "fingerprint FILE",
	Short: "Compute a file's chunked Merkle fingerprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunkSize, _ := cmd.Flags().GetUint32("chunk-size")

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		fp, err := sdk.ComputeFingerprint(f, chunkSize)
		if err != nil {
			return fmt.Errorf("computing fingerprint: %w", err)
		}

		fmt.Printf("0x%s\n", hex.EncodeToString(fp[:]))
		return nil
	},
}

var sdkRequestDeleteCmd = &cobra.Command{
	Use:   "request-delete FILE_KEY",
	Short: "Build, sign, and submit a file deletion request",
	Long: `Construct a FileOperationIntention{file_key, Delete}, SCALE-encode it,
sign the encoding with the key named by --signer, and submit it over the
chain RPC connection as requestDeleteFile's argument.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signerURI, _ := cmd.Flags().GetString("signer")
		rpcURL, _ := cmd.Flags().GetString("rpc-url")

		fileKeyBytes, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
		if err != nil || len(fileKeyBytes) != 32 {
			return fmt.Errorf("FILE_KEY must be a 32-byte hex string, got %q", args[0])
		}
		var file types.FileKey
		copy(file[:], fileKeyBytes)

		signed, err := sdk.BuildDeleteIntention(file, signerURI)
		if err != nil {
			return fmt.Errorf("building intention: %w", err)
		}

		ctx := cmd.Context()
		rpc, err := chainrpc.Dial(ctx, rpcURL, 30*time.Second, 1)
		if err != nil {
			return fmt.Errorf("dialing chain RPC: %w", err)
		}
		defer rpc.Close()

		outcome, err := rpc.SubmitExtrinsic(ctx, append(signed.Encoded, signed.Signature...))
		if err != nil {
			return fmt.Errorf("submitting request: %w", err)
		}

		fmt.Printf("deletion request finalized at block %d\n", outcome.BlockHeight)
		return nil
	},
}

func init() {
	sdkFingerprintCmd.Flags().Uint32("chunk-size", sdk.DefaultFingerprintChunkSize, "Chunk size in bytes used for fingerprinting")

	sdkRequestDeleteCmd.Flags().String("signer", "", "Key URI of the requesting user (required)")
	sdkRequestDeleteCmd.Flags().String("rpc-url", "ws://127.0.0.1:9944", "Chain RPC websocket URL")
	sdkRequestDeleteCmd.MarkFlagRequired("signer")

	sdkCmd.AddCommand(sdkFingerprintCmd)
	sdkCmd.AddCommand(sdkRequestDeleteCmd)
}
