//go:build wireinject
// +build wireinject

package di

import (
	"QuotePull/pkg/config"
	"QuotePull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideSleeper,

		// Infrastructure clients
		ProvideHTTPClient,
		ProvideQuoteStore,
		ProvideRedisCache,

		// Repositories and services
		ProvideQuoteSource,
		ProvideRunLocker,
		ProvidePacer,

		// Use cases
		ProvideNormalizer,
		ProvideQuoteWriter,
		ProvideQuoteCollector,

		// Application
		ProvideApp,
	)
	return nil, nil, nil
}
