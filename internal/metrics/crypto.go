package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// KeyStatusSource reports the key subsystem state. Satisfied by the key use
// case.
type KeyStatusSource interface {
	Status(ctx context.Context) (*cryptoDomain.KeyStatus, error)
}

// RegisterCryptoGauges registers observable gauges exposing the key
// subsystem's operational state: readiness, latched auth failure, the active
// wrap mode, total key rows, and the age of the active key. The collector
// reads the key manager flags and the status source at scrape time.
func RegisterCryptoGauges(
	meterProvider metric.MeterProvider,
	namespace string,
	keyManager cryptoService.KeyManager,
	statusSource KeyStatusSource,
) error {
	meter := meterProvider.Meter(namespace)

	readyGauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_crypto_ready", namespace),
		metric.WithDescription("Whether the write DEK has been unwrapped successfully (1) or not (0)"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ready gauge: %w", err)
	}

	authFailedGauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_crypto_unwrap_auth_failed", namespace),
		metric.WithDescription("Whether a DEK unwrap authentication failure has latched (1) or not (0)"),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth failed gauge: %w", err)
	}

	modeGauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_crypto_mode", namespace),
		metric.WithDescription("Wrap scheme of the active key, as a mode attribute"),
	)
	if err != nil {
		return fmt.Errorf("failed to create mode gauge: %w", err)
	}

	keysTotalGauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_crypto_keys_total", namespace),
		metric.WithDescription("Number of encryption key rows, all labels included"),
	)
	if err != nil {
		return fmt.Errorf("failed to create keys total gauge: %w", err)
	}

	activeAgeGauge, err := meter.Float64ObservableGauge(
		fmt.Sprintf("%s_crypto_active_label_age_seconds", namespace),
		metric.WithDescription("Seconds since the active key row was created"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active age gauge: %w", err)
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			observer.ObserveInt64(readyGauge, boolToInt64(keyManager.Ready()))
			observer.ObserveInt64(authFailedGauge, boolToInt64(keyManager.AuthFailed()))

			// The store-derived gauges are skipped on error rather than
			// failing the whole collection; readiness is still reported.
			status, err := statusSource.Status(ctx)
			if err != nil {
				return nil
			}

			observer.ObserveInt64(keysTotalGauge, int64(len(status.Keys)))
			for _, key := range status.Keys {
				if key.Label != cryptoDomain.LabelActive {
					continue
				}
				observer.ObserveInt64(modeGauge, 1, metric.WithAttributes(
					attribute.String("mode", string(key.WrapScheme)),
				))
				observer.ObserveFloat64(activeAgeGauge, time.Since(key.CreatedAt).Seconds())
			}
			return nil
		},
		readyGauge,
		authFailedGauge,
		modeGauge,
		keysTotalGauge,
		activeAgeGauge,
	)
	if err != nil {
		return fmt.Errorf("failed to register crypto gauge callback: %w", err)
	}

	return nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
