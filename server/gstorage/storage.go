package gstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrObjectNotExist = storage.ErrObjectNotExist

const transferTimeout = 50 * time.Second

// GStorage copies files to & from a Google Cloud Storage bucket. It backs up
// (and restores) the encrypted sqlite file.
type GStorage struct {
	storageClient *storage.Client
	prefix        string
}

func NewGStorage(credentialsFilePath, prefix string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, fmt.Errorf("NewGStorage: %v", err)
	}

	return &GStorage{storageClient: client, prefix: prefix}, nil
}

// UploadFile uploads the file at filePath as '<prefix>/<basename>'.
func (gs *GStorage) UploadFile(bucket, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("os.Open: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	objectName := gs.objectName(filepath.Base(filePath))
	wc := gs.storageClient.Bucket(bucket).Object(objectName).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		return fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %v", err)
	}

	return nil
}

// DownloadFile downloads '<prefix>/<object>' into destFileName. A missing
// object fails with ErrObjectNotExist, which callers may treat as "nothing
// to restore".
func (gs *GStorage) DownloadFile(bucket, object, destFileName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	rc, err := gs.storageClient.Bucket(bucket).Object(gs.objectName(object)).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return err
	}
	if err != nil {
		return fmt.Errorf("Object(%q).NewReader: %v", object, err)
	}
	defer rc.Close()

	f, err := os.Create(destFileName)
	if err != nil {
		return fmt.Errorf("os.Create: %v", err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("io.Copy: %v", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("f.Close: %v", err)
	}

	return nil
}

func (gs *GStorage) objectName(base string) string {
	if gs.prefix == "" {
		return base
	}

	return fmt.Sprintf("%v/%v", gs.prefix, base)
}
