package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/imagetransfer/internal/domain"
)

type fakeFetcher struct {
	image *domain.RemoteImage
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*domain.RemoteImage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	img := *f.image
	img.URL = rawURL
	return &img, nil
}

type upload struct {
	key         string
	data        []byte
	contentType string
}

type fakeStore struct {
	mu      sync.Mutex
	uploads []upload
	deleted []string
	// failOn makes the n-th upload (1-based) fail.
	failOn int
}

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn > 0 && len(s.uploads)+1 == s.failOn {
		return "", errors.New("store unavailable")
	}
	s.uploads = append(s.uploads, upload{key: key, data: data, contentType: contentType})
	return "mem://images/" + key, nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.uploads {
		if u.key == key {
			return io.NopCloser(bytes.NewReader(u.data)), nil
		}
	}
	return nil, domain.ErrBlobNotFound
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) DeleteAll(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) KeyForURI(uri string) (string, bool) {
	key, ok := strings.CutPrefix(uri, "mem://images/")
	return key, ok && key != ""
}

func (s *fakeStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.uploads))
	for _, u := range s.uploads {
		keys = append(keys, u.key)
	}
	return keys
}

type fakeRepo struct {
	mu        sync.Mutex
	transfers map[string]*domain.Transfer
	createErr error
	updates   []domain.TransferStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{transfers: make(map[string]*domain.Transfer)}
}

func (r *fakeRepo) Create(ctx context.Context, t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *t
	r.transfers[t.ID] = &cp
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) Update(ctx context.Context, t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transfers[t.ID]; !ok {
		return domain.ErrTransferNotFound
	}
	cp := *t
	r.transfers[t.ID] = &cp
	r.updates = append(r.updates, t.Status)
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transfers[id]; !ok {
		return domain.ErrTransferNotFound
	}
	delete(r.transfers, id)
	return nil
}

func (r *fakeRepo) FindByStatus(ctx context.Context, status domain.TransferStatus, limit, offset int) ([]*domain.Transfer, error) {
	all, _ := r.List(ctx, 0, 0)
	var out []*domain.Transfer
	for _, t := range all {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return page(out, limit, offset), nil
}

func (r *fakeRepo) List(ctx context.Context, limit, offset int) ([]*domain.Transfer, error) {
	r.mu.Lock()
	out := make([]*domain.Transfer, 0, len(r.transfers))
	for _, t := range r.transfers {
		cp := *t
		out = append(out, &cp)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *fakeRepo) URIReferenced(ctx context.Context, uri, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.transfers {
		if id == excludeID {
			continue
		}
		for _, u := range t.URIs {
			if u == uri {
				return true, nil
			}
		}
	}
	return false, nil
}

func page(items []*domain.Transfer, limit, offset int) []*domain.Transfer {
	if offset >= len(items) {
		return []*domain.Transfer{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type fakeQueue struct {
	published []string
	err       error
}

func (q *fakeQueue) PublishTransferTask(ctx context.Context, transferID string) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, transferID)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

// pngImage encodes a solid width x height PNG.
func pngImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) image.Point {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Size()
}
