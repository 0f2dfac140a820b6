// Package main seeds the configured storage with a demo catalog and opening
// stock received through committed purchases.
package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"millstock/internal/app"
	"millstock/internal/config"
	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/types"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/catalogs/product"
	"millstock/internal/domain/documents/purchase"
	"millstock/pkg/logger"
)

type seedColor struct {
	code, name string
}

type seedProduct struct {
	code, name, unit string
	greige           bool
	colors           []seedColor
}

var demoProducts = []seedProduct{
	{code: "GY-40S", name: "40支坯纱", unit: "公斤", greige: true, colors: []seedColor{{"RAW", "本白"}}},
	{code: "FB-JR", name: "精梳棉布", unit: "米", colors: []seedColor{{"R01", "大红"}, {"B01", "藏青"}, {"K01", "黑色"}}},
	{code: "FB-TC", name: "涤棉府绸", unit: "米", colors: []seedColor{{"W01", "漂白"}, {"G01", "灰色"}}},
}

var demoCounterparties = []struct {
	code, name string
	kind       counterparty.Type
}{
	{"S001", "绍兴纺织", counterparty.TypeSupplier},
	{"S002", "萧山纱厂", counterparty.TypeSupplier},
	{"C001", "杭州服饰", counterparty.TypeCustomer},
	{"C002", "宁波制衣", counterparty.TypeBoth},
	{"D001", "柯桥印染", counterparty.TypeDyeFactory},
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := appctx.WithOperator(context.Background(), appctx.Operator{ID: "seed", Name: "seed"})
	if cfg.Storage != config.StoragePostgres {
		log.Warnw("seeding in-memory storage, data is discarded on exit", "storage", cfg.Storage)
	}

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer rt.Close()

	s := &seeder{app: rt.App, log: log}
	if err := s.run(ctx); err != nil {
		if apperror.IsDuplicate(err) {
			log.Infow("demo data already present, nothing to do", "error", err)
			return
		}
		log.Fatalw("failed to seed demo data", "error", err)
	}
	log.Info("demo data seeded")
}

type seeder struct {
	app *app.App
	log *logger.Logger

	supplier *counterparty.Counterparty
	colors   []*color.Color
}

func (s *seeder) run(ctx context.Context) error {
	if err := s.seedCounterparties(ctx); err != nil {
		return err
	}
	if err := s.seedCatalog(ctx); err != nil {
		return err
	}
	return s.seedOpeningStock(ctx)
}

func (s *seeder) seedCounterparties(ctx context.Context) error {
	for _, c := range demoCounterparties {
		cp := counterparty.NewCounterparty(c.code, c.name, c.kind)
		if err := s.app.Counterparties.Create(ctx, cp); err != nil {
			return fmt.Errorf("counterparty %s: %w", c.code, err)
		}
		if s.supplier == nil && c.kind == counterparty.TypeSupplier {
			s.supplier = cp
		}
	}
	s.log.Infow("counterparties seeded", "count", len(demoCounterparties))
	return nil
}

// seedCatalog creates the products one by one and their colors in parallel.
func (s *seeder) seedCatalog(ctx context.Context) error {
	for _, sp := range demoProducts {
		p := product.NewProduct(sp.code, sp.name, sp.unit, sp.greige)
		if err := s.app.Products.Create(ctx, p); err != nil {
			return fmt.Errorf("product %s: %w", sp.code, err)
		}

		created := make([]*color.Color, len(sp.colors))
		g, gctx := errgroup.WithContext(ctx)
		for i, sc := range sp.colors {
			g.Go(func() error {
				c := color.NewColor(p.ID, sc.code, sc.name)
				if err := s.app.Colors.Create(gctx, c); err != nil {
					return fmt.Errorf("color %s/%s: %w", sp.code, sc.code, err)
				}
				created[i] = c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		s.colors = append(s.colors, created...)
	}
	s.log.Infow("catalog seeded", "products", len(demoProducts), "colors", len(s.colors))
	return nil
}

// seedOpeningStock receives one batch per color through a paid purchase.
func (s *seeder) seedOpeningStock(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, c := range s.colors {
		g.Go(func() error {
			o := purchase.NewOrder("", s.supplier.ID)
			o.Comment = "期初库存"
			o.StockLocation = "A-01"
			o.AddLine(c.ProductID, c.ID, c.Code+"-0001", types.MustQuantity("500"), types.MustMoney("12.50"))
			o.PaidAmount = o.TotalAmount
			if err := s.app.Purchases.Create(gctx, o); err != nil {
				return fmt.Errorf("opening purchase for %s: %w", c.Code, err)
			}
			committed, err := s.app.Purchases.Commit(gctx, o.ID)
			if err != nil {
				return fmt.Errorf("commit opening purchase for %s: %w", c.Code, err)
			}
			s.log.Infow("opening stock received", "order", committed.Number, "color", c.Code)
			return nil
		})
	}
	return g.Wait()
}
