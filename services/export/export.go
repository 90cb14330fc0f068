// Package export produces a signed, compressed ledger of every recorded
// terms acceptance, suitable for handing to compliance or legal review.
// The archive holds a JSON ledger plus a yaml manifest carrying the ledger
// digest and an Ed25519 signature.
package export

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"partnerd/pkg/s3"
	"partnerd/services/partner"
)

const (
	manifestFileName = "manifest.yaml"
	ledgerFileName   = "ledger.json"
	manifestVersion  = "1"
)

// Record is one acceptance in the exported ledger. The raw token string is
// deliberately omitted; the token id is enough to trace back to the row.
type Record struct {
	TokenID       uuid.UUID  `json:"token_id"`
	ApplicationID uuid.UUID  `json:"application_id"`
	FullName      string     `json:"full_name"`
	Email         string     `json:"email"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	AcceptedAt    time.Time  `json:"accepted_at"`
	Origin        *string    `json:"origin,omitempty"`
}

// BuildConfig configures a ledger export.
type BuildConfig struct {
	Tokens       partner.TokenStore
	Applications partner.ApplicationStore
	// Output is the local path of the tar.zst archive to write.
	Output string
	// Bucket and S3 enable uploading the archive after writing. Both may be
	// empty to keep the export local.
	Bucket string
	S3     *s3.Client
	Signer *Signer
	Now    func() time.Time
	Stdout io.Writer
}

// Build collects all accepted tokens, joins their applications, signs the
// ledger and writes the archive. When a bucket is configured the archive is
// uploaded under exports/.
func Build(ctx context.Context, cfg BuildConfig) (*Manifest, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("token store is required")
	}
	if cfg.Applications == nil {
		return nil, errors.New("application store is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := collectRecords(ctx, cfg.Tokens, cfg.Applications)
	if err != nil {
		return nil, err
	}

	ledger, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal ledger: %w", err)
	}
	digest := sha256.Sum256(ledger)

	manifest := &Manifest{
		Version:          manifestVersion,
		CreatedAt:        cfg.Now().UTC().Truncate(time.Second),
		Signer:           cfg.Signer.Recipient(),
		SigningPublicKey: cfg.Signer.PublicKeyBase64(),
		RecordCount:      len(records),
		LedgerSHA256:     hex.EncodeToString(digest[:]),
		LedgerSize:       int64(len(ledger)),
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	sig, err := cfg.Signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifest.Signature = sig

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writeArchive(cfg.Output, manifestBytes, ledger); err != nil {
		return nil, err
	}
	fmt.Fprintf(cfg.Stdout, "wrote ledger %s (%d acceptances)\n", cfg.Output, len(records))

	if cfg.S3 != nil && cfg.Bucket != "" {
		key := fmt.Sprintf("exports/%s", filepath.Base(cfg.Output))
		if err := uploadArchive(ctx, cfg.S3, cfg.Bucket, key, cfg.Output); err != nil {
			return nil, err
		}
		fmt.Fprintf(cfg.Stdout, "uploaded s3://%s/%s\n", cfg.Bucket, key)
	}

	return manifest, nil
}

func collectRecords(ctx context.Context, tokens partner.TokenStore, apps partner.ApplicationStore) ([]Record, error) {
	accepted, err := tokens.ListAccepted(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accepted tokens: %w", err)
	}

	records := make([]Record, 0, len(accepted))
	cache := map[uuid.UUID]partner.Application{}
	for _, tok := range accepted {
		app, ok := cache[tok.ApplicationID]
		if !ok {
			app, err = apps.GetByID(ctx, tok.ApplicationID)
			if err != nil {
				return nil, fmt.Errorf("load application %s: %w", tok.ApplicationID, err)
			}
			cache[tok.ApplicationID] = app
		}
		records = append(records, Record{
			TokenID:       tok.ID,
			ApplicationID: tok.ApplicationID,
			FullName:      app.FullName,
			Email:         app.Email,
			IssuedAt:      tok.IssuedAt,
			ExpiresAt:     tok.ExpiresAt,
			AcceptedAt:    *tok.AcceptedAt,
			Origin:        tok.AcceptanceOrigin,
		})
	}
	return records, nil
}

func writeArchive(output string, manifest, ledger []byte) error {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	defer encoder.Close()

	tw := tar.NewWriter(encoder)
	defer tw.Close()

	for _, entry := range []struct {
		name string
		data []byte
	}{
		{manifestFileName, manifest},
		{ledgerFileName, ledger},
	} {
		hdr := &tar.Header{
			Name:     entry.name,
			Mode:     0o644,
			Size:     int64(len(entry.data)),
			ModTime:  time.Now().UTC(),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header for %q: %w", entry.name, err)
		}
		if _, err := tw.Write(entry.data); err != nil {
			return fmt.Errorf("write %q: %w", entry.name, err)
		}
	}
	return nil
}

func uploadArchive(ctx context.Context, client *s3.Client, bucket, key, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive for upload: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fmt.Errorf("hash archive: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind archive: %w", err)
	}
	sha := hex.EncodeToString(hash.Sum(nil))
	if err := client.PutObject(ctx, bucket, key, file, info.Size(), sha); err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}
	return nil
}

// Verify opens a previously written archive, checks the manifest signature
// and the ledger digest, and returns the manifest.
func Verify(ctx context.Context, path string, signer *Signer) (*Manifest, error) {
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	var manifestBytes, ledger []byte
	tr := tar.NewReader(decoder)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		switch filepath.Clean(hdr.Name) {
		case manifestFileName:
			if manifestBytes, err = io.ReadAll(tr); err != nil {
				return nil, fmt.Errorf("read manifest: %w", err)
			}
		case ledgerFileName:
			if ledger, err = io.ReadAll(tr); err != nil {
				return nil, fmt.Errorf("read ledger: %w", err)
			}
		}
	}
	if len(manifestBytes) == 0 {
		return nil, errors.New("archive missing manifest.yaml")
	}
	if ledger == nil {
		return nil, errors.New("archive missing ledger.json")
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}
	if manifest.Signature == "" {
		return nil, errors.New("manifest missing signature")
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, fmt.Errorf("verify manifest signature: %w", err)
	}

	digest := sha256.Sum256(ledger)
	if hex.EncodeToString(digest[:]) != manifest.LedgerSHA256 {
		return nil, errors.New("ledger digest mismatch")
	}
	if int64(len(ledger)) != manifest.LedgerSize {
		return nil, errors.New("ledger size mismatch")
	}
	return &manifest, nil
}
