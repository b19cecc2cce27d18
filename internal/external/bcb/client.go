package bcb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/external"
	"github.com/wonny/alphaterminal/backend/internal/fundamentals"
	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/httputil"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

const providerName = "bcb"

// observation is one point of an SGS series; valor is a decimal string
type observation struct {
	Data  string `json:"data"`  // dd/mm/yyyy
	Valor string `json:"valor"` // "10.75" or "10,75"
}

// Client reads the central bank's SGS time series (Selic and IPCA 12m)
// ⭐ SSOT: macro indicator fetching lives here only
type Client struct {
	httpClient      *httputil.Client
	logger          *logger.Logger
	baseURL         string
	interestSeries  string
	inflationSeries string
}

// NewClient creates a new SGS client
func NewClient(httpClient *httputil.Client, cfg config.MacroConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient:      httpClient,
		logger:          log.WithComponent("bcb"),
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		interestSeries:  cfg.InterestSeries,
		inflationSeries: cfg.InflationSeries,
	}
}

// Fetch implements contracts.MacroProvider.
// Both series are requested concurrently; ObservedAt is the older of the two dates.
func (c *Client) Fetch(ctx context.Context) (contracts.MacroIndicators, error) {
	var interest, inflation observationValue

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.latest(gctx, c.interestSeries)
		interest = v
		return err
	})
	g.Go(func() error {
		v, err := c.latest(gctx, c.inflationSeries)
		inflation = v
		return err
	})
	if err := g.Wait(); err != nil {
		return contracts.MacroIndicators{}, err
	}

	if interest.value <= 0 {
		return contracts.MacroIndicators{}, &contracts.ValidationError{
			Entity: "series " + c.interestSeries, Field: "valor", Reason: "must be positive",
		}
	}

	observed := interest.date
	if inflation.date.Before(observed) {
		observed = inflation.date
	}

	c.logger.WithFields(map[string]interface{}{
		"interest":    interest.value,
		"inflation":   inflation.value,
		"observed_at": observed.Format("2006-01-02"),
	}).Info("Macro indicators fetched")

	return contracts.MacroIndicators{
		InterestRate:  interest.value,
		InflationRate: inflation.value,
		ObservedAt:    observed,
	}, nil
}

type observationValue struct {
	value float64
	date  time.Time
}

func (c *Client) latest(ctx context.Context, series string) (observationValue, error) {
	url := fmt.Sprintf("%s/bcdata.sgs.%s/dados/ultimos/1?formato=json", c.baseURL, series)

	var points []observation
	if err := c.httpClient.GetJSON(ctx, url, &points); err != nil {
		return observationValue{}, external.ProviderError(providerName, err)
	}
	if len(points) == 0 {
		return observationValue{}, &contracts.TransientProviderError{
			Provider: providerName, Err: fmt.Errorf("series %s returned no observations", series),
		}
	}

	return parseObservation(series, points[len(points)-1])
}

func parseObservation(series string, p observation) (observationValue, error) {
	v, ok, err := fundamentals.ParseNumber(p.Valor)
	if err != nil || !ok {
		return observationValue{}, &contracts.ValidationError{
			Entity: "series " + series, Field: "valor", Reason: fmt.Sprintf("unparseable %q", p.Valor),
		}
	}

	date, err := time.Parse("02/01/2006", strings.TrimSpace(p.Data))
	if err != nil {
		return observationValue{}, &contracts.ValidationError{
			Entity: "series " + series, Field: "data", Reason: fmt.Sprintf("unparseable %q", p.Data),
		}
	}

	return observationValue{value: v, date: date}, nil
}
