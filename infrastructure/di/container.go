// Package di wires the detection service together.
package di

import (
	"coredetect/application/commands/bus"
	"coredetect/application/ports"
	querybus "coredetect/application/queries/bus"
	"coredetect/application/services"
	"coredetect/infrastructure/config"
	"coredetect/interfaces/http/rest"
	"coredetect/pkg/auth"
	"coredetect/pkg/observability"

	"go.uber.org/zap"
)

// Repositories groups the storage ports of one backend
type Repositories struct {
	Users          ports.UserRepository
	Friends        ports.FriendsRepository
	Tweets         ports.TweetRepository
	Neighbourhoods ports.NeighbourhoodRepository
	Graphs         ports.SocialGraphRepository
	Clusters       ports.ClusterRepository
	Rankings       ports.RankingRepository
	Lock           ports.RunLock
	Runs           ports.RunEventStore
}

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Tracer        *observability.Tracer
	Repositories  *Repositories
	Detector      *services.CoreDetector
	Publisher     ports.EventPublisher
	Notifier      ports.ProgressNotifier
	CommandBus    *bus.CommandBus
	QueryBus      *querybus.QueryBus
	Router        *rest.Router
	JWTValidator  *auth.JWTValidator
	ConfigWatcher *config.Watcher
}
