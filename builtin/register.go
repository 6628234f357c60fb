// Package builtin registers all built-in providers with the default registry.
package builtin

import (
	"github.com/spetr/tobedo/builtin/store/sqlitestore"
	"github.com/spetr/tobedo/pkg/provider"
)

func init() {
	// Register reply stores
	provider.RegisterReplyStore("sqlite", func(cfg provider.ReplyStoreConfig) (provider.ReplyStore, error) {
		return sqlitestore.New(cfg.Path), nil
	})
}
