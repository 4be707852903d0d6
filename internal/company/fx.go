package company

import (
	"github.com/smallbiznis/revlens/internal/company/repository"
	"github.com/smallbiznis/revlens/internal/company/service"
	"go.uber.org/fx"
)

var Module = fx.Module("company.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
