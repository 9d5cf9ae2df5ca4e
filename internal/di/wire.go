//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/Yoitsuro/mySkripsiWebsite/pkg/config"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup closes infrastructure clients and must run after App.Run returns.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideForecastCache,

		// Models and market data
		ProvideModelSet,
		ProvideForecaster,
		ProvideRESTSource,
		ProvideCandleBook,
		ProvideCandleSource,
		ProvideCandlePipeline,
		ProvideCandleCollector,

		// Archive
		ProvideForecastArchive,
		ProvideForecastPublisher,
		ProvideForecastRecorder,
		ProvideKafkaConsumer,
		ProvideArchiveHandler,

		// Use cases and transport
		ProvideForecastUseCase,
		ProvideHistoryUseCase,
		ProvideReferenceUseCase,
		ProvideRateLimiter,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
