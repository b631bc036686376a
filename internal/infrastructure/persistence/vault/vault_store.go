// Package vault is a storage.Adapter keeping records in a HashiCorp Vault KV v2 mount.
//
// A record named n in store s lives at "<mount>/data/<s>/<sha256hex(n)>" with the
// record bytes base64-encoded under the "record" field. Creation and update use
// KV v2 check-and-set so concurrent writers cannot overwrite each other. A
// soft-deleted secret (metadata without data) counts as absent and is overwritten
// by Store.
package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/credkit/internal/config"
	"github.com/turtacn/credkit/pkg/logger"
	"github.com/turtacn/credkit/pkg/storage"
)

const (
	recordField = "record"
	// casRetries bounds how often Update re-reads after losing a check-and-set race.
	casRetries = 3
)

// Store keeps the records of one store under a KV v2 mount.
type Store struct {
	client *vault.Client
	mount  string
	name   string
	logger logger.Logger
}

// NewClient builds a Vault API client from configuration.
func NewClient(cfg config.VaultConfig) (*vault.Client, error) {
	vc := vault.DefaultConfig()
	if cfg.Address != "" {
		vc.Address = cfg.Address
	}
	if cfg.Timeout > 0 {
		vc.Timeout = cfg.Timeout
	}
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return client, nil
}

// New returns a Store for name under the KV v2 mount.
func New(client *vault.Client, mount, name string, log logger.Logger) *Store {
	if mount == "" {
		mount = "secret"
	}
	return &Store{
		client: client,
		mount:  strings.Trim(mount, "/"),
		name:   name,
		logger: logger.Component(log, "vault-storage"),
	}
}

func (s *Store) dataPath(key string) string {
	return path.Join(s.mount, "data", s.name, key)
}

func (s *Store) metadataPath(key string) string {
	return path.Join(s.mount, "metadata", s.name, key)
}

// read returns the record and the current KV version of the secret at key. The
// record is nil on a miss; the version is also reported for a soft-deleted secret.
func (s *Store) read(ctx context.Context, key string) ([]byte, int, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.dataPath(key))
	if err != nil {
		return nil, 0, fmt.Errorf("vault read %s: %w", key, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, 0, nil
	}

	version := 0
	if meta, ok := secret.Data["metadata"].(map[string]interface{}); ok {
		version = toInt(meta["version"])
	}
	data, _ := secret.Data["data"].(map[string]interface{})
	if data == nil {
		return nil, version, nil
	}
	encoded, ok := data[recordField].(string)
	if !ok {
		return nil, 0, fmt.Errorf("vault read %s: secret has no %q field", key, recordField)
	}
	record, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, 0, fmt.Errorf("vault read %s: %w", key, err)
	}
	if record == nil {
		record = []byte{}
	}
	return record, version, nil
}

func (s *Store) write(ctx context.Context, key string, data []byte, cas int) error {
	_, err := s.client.Logical().WriteWithContext(ctx, s.dataPath(key), map[string]interface{}{
		"options": map[string]interface{}{"cas": cas},
		"data":    map[string]interface{}{recordField: base64.StdEncoding.EncodeToString(data)},
	})
	return err
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	record, _, err := s.read(ctx, storage.NameDigest(name))
	return record != nil, err
}

func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	record, _, err := s.read(ctx, storage.NameDigest(name))
	return record, err
}

func (s *Store) Store(ctx context.Context, name string, data []byte) error {
	key := storage.NameDigest(name)
	version := 0
	for attempt := 0; attempt < casRetries; attempt++ {
		err := s.write(ctx, key, data, version)
		if err == nil {
			return nil
		}
		if !isCASMismatch(err) {
			return fmt.Errorf("vault write %s: %w", name, err)
		}
		// The secret exists; it only blocks creation if it still holds data.
		record, current, rerr := s.read(ctx, key)
		if rerr != nil {
			return rerr
		}
		if record != nil {
			return storage.ErrAlreadyExists
		}
		s.logger.Debug(ctx, "Overwriting soft-deleted secret",
			logger.String("name", name), logger.Int("version", current))
		version = current
	}
	return storage.ErrAlreadyExists
}

func (s *Store) Update(ctx context.Context, name string, data []byte) error {
	key := storage.NameDigest(name)
	for attempt := 0; attempt < casRetries; attempt++ {
		record, version, err := s.read(ctx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}
		err = s.write(ctx, key, data, version)
		if !isCASMismatch(err) {
			if err != nil {
				return fmt.Errorf("vault write %s: %w", name, err)
			}
			return nil
		}
		s.logger.Debug(ctx, "Lost check-and-set race, retrying update",
			logger.String("name", name), logger.Int("attempt", attempt+1))
	}
	return fmt.Errorf("vault write %s: concurrent modification", name)
}

func (s *Store) Remove(ctx context.Context, name string) (bool, error) {
	key := storage.NameDigest(name)
	record, _, err := s.read(ctx, key)
	if err != nil || record == nil {
		return false, err
	}
	if _, err := s.client.Logical().DeleteWithContext(ctx, s.metadataPath(key)); err != nil {
		return false, fmt.Errorf("vault delete %s: %w", name, err)
	}
	return true, nil
}

// keys returns the digests of the record names in the store.
func (s *Store) keys(ctx context.Context) ([]string, error) {
	secret, err := s.client.Logical().ListWithContext(ctx, path.Join(s.mount, "metadata", s.name))
	if err != nil {
		return nil, fmt.Errorf("vault list: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	raw, _ := secret.Data["keys"].([]interface{})
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if key, ok := k.(string); ok && !strings.HasSuffix(key, "/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// List returns records ordered by name digest.
func (s *Store) List(ctx context.Context) ([][]byte, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(keys))
	for _, key := range keys {
		record, _, err := s.read(ctx, key)
		if err != nil {
			return nil, err
		}
		// Removed between list and read, or soft-deleted.
		if record == nil {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := s.client.Logical().DeleteWithContext(ctx, s.metadataPath(key)); err != nil {
			return fmt.Errorf("vault delete %s: %w", key, err)
		}
	}
	return nil
}

func isCASMismatch(err error) bool {
	var respErr *vault.ResponseError
	if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusBadRequest {
		return false
	}
	for _, msg := range respErr.Errors {
		if strings.Contains(msg, "check-and-set") {
			return true
		}
	}
	return false
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case interface{ Int64() (int64, error) }:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

var _ storage.Adapter = (*Store)(nil)
