package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"jmapclient/internal/common/logger"
)

// uploadBlob uploads a local file to the primary account and prints the
// blob reference and its download URL.
func uploadBlob(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	fmt.Printf("Uploading %s to %s...\n", config.File, config.Host)

	results := newResultWriter(csvLogger, config, []string{"File", "Blob_Id", "Size", "Type", "Error"})

	f, err := os.Open(config.File)
	if err != nil {
		results.failure(err)
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	ref, err := c.UploadBlob(ctx, "", f, config.ContentType)
	if err != nil {
		logger.LogError(slogLogger, "Upload failed", "error", err, "file", config.File)
		results.failure(err)
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Println("✓ Upload successful")
	fmt.Printf("  Account: %s\n", ref.AccountId)
	fmt.Printf("  Blob id: %s\n", ref.BlobId)
	fmt.Printf("  Size:    %d\n", ref.Size)
	fmt.Printf("  Type:    %s\n", ref.Type)
	if url, err := c.DownloadURL(ref.AccountId, ref.BlobId, "", ref.Type); err == nil {
		fmt.Printf("  URL:     %s\n", url)
	}

	results.success(config.File, string(ref.BlobId), fmt.Sprintf("%d", ref.Size), ref.Type, "")
	logger.LogInfo(slogLogger, "Upload completed", "blob_id", ref.BlobId, "size", ref.Size)
	return nil
}
