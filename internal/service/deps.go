package service

import (
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/cache"
	"github.com/d60-Lab/living-legends/internal/catalog"
	"github.com/d60-Lab/living-legends/internal/storylock"
)

// Deps 服务层共享依赖
type Deps struct {
	DB       *gorm.DB
	Locker   storylock.Locker
	Notifier *Notifier
	Catalog  *catalog.Catalog
	Engine   config.EngineConfig
	Feed     cache.FeedCache
	Clock    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = storylock.NewLocal()
	}
	if d.Notifier == nil {
		d.Notifier = NewNotifier(d.DB, nil)
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Feed == nil {
		d.Feed = cache.Nop{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Engine.EvidenceThreshold <= 0 {
		d.Engine = config.Default().Engine
	}
	return d
}
