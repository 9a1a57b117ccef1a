package state

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
)

//go:embed templates/openclaw.json
var embeddedTemplate []byte

// loadTemplate returns the config template bytes. ref may be empty (the
// versioned template embedded in the binary), a local file path, or a
// gs://bucket/object reference.
func loadTemplate(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case ref == "":
		return embeddedTemplate, nil
	case strings.HasPrefix(ref, "gs://"):
		return fetchGCSTemplate(ctx, ref)
	default:
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read config template %s: %w", ref, err)
		}
		return data, nil
	}
}

// fetchGCSTemplate downloads a config template object from GCS.
func fetchGCSTemplate(ctx context.Context, ref string) ([]byte, error) {
	bucket, object, err := splitGCSRef(ref)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	defer client.Close()

	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open template object %s: %w", ref, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read template object %s: %w", ref, err)
	}
	return data, nil
}

func splitGCSRef(ref string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(ref, "gs://")
	idx := strings.Index(trimmed, "/")
	if idx <= 0 || idx == len(trimmed)-1 {
		return "", "", fmt.Errorf("invalid gs:// template reference: %s", ref)
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}
