package merge

import (
	"github.com/lettermill/lettermill/internal/config"
	"github.com/lettermill/lettermill/internal/merge/progress"
	"github.com/lettermill/lettermill/internal/merge/service"
	"go.uber.org/fx"
)

func newHub(holder *config.MergeConfigHolder) *progress.Hub {
	return progress.NewHub(holder.Current().SubscriberBuffer)
}

var Module = fx.Module("merge",
	fx.Provide(newHub),
	fx.Provide(service.New),
)
