package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docscope/core"
	"github.com/poiesic/docscope/storage"
)

// ImageRepository implements storage.ImageRepository for BadgerDB.
type ImageRepository struct {
	backend *Backend
}

var _ storage.ImageRepository = (*ImageRepository)(nil)

// NewImageRepository creates a new ImageRepository.
func NewImageRepository(backend *Backend) (*ImageRepository, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &ImageRepository{backend: backend}, nil
}

// Close releases resources. ImageRepository has no resources to release.
func (r *ImageRepository) Close() error {
	return nil
}

// PutImages stores image records keyed by document, page and index.
func (r *ImageRepository) PutImages(ctx context.Context, images ...*core.Image) error {
	if len(images) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, img := range images {
			key := makeImageKey(img.DocumentID, img.Page, img.Index)
			if err := tx.Set(key, storage.MarshalImage(img)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ImagesForDocument returns a document's images ordered by page and index.
func (r *ImageRepository) ImagesForDocument(ctx context.Context, id core.DocumentID) ([]*core.Image, error) {
	var result []*core.Image
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeImageDocPrefix(id)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var img *core.Image
			err := iter.Item().Value(func(val []byte) error {
				var err error
				img, err = storage.UnmarshalImage(val)
				return err
			})
			if err != nil {
				return err
			}
			result = append(result, img)
		}
		return nil
	}, false)
	return result, err
}
