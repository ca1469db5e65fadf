package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/libdeploy/internal/logger"
)

var errDecoderPanic = errors.New("decoder panicked")

// extract runs the decoder on the staged archive and deletes the archive
// afterwards, whatever the decoder did.
func (d *Deployer) extract(ctx context.Context, staged string) error {
	started := time.Now()

	err := d.decodeSafely(staged)

	if removeErr := os.Remove(staged); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to delete staged archive", "path", staged, "error", removeErr)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	logger.InfoKV(ctx, "Bundle extracted", "variant", d.manifest.Variant, "elapsed", time.Since(started))

	return nil
}

// decodeSafely turns a decoder panic into an error so the host keeps running.
func (d *Deployer) decodeSafely(staged string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errDecoderPanic, r)
		}
	}()

	return d.decoder.Decode(staged, d.dir, d.manifest.Variant)
}

// commit records the expected version in the marker.
func (d *Deployer) commit(ctx context.Context) error {
	if err := d.marker.Save(ctx, d.manifest.Version); err != nil {
		return fmt.Errorf("%w: %w", ErrMarkerWrite, err)
	}

	logger.InfoKV(ctx, "Version marker written", "path", d.marker.Path(), "version", d.manifest.Version)

	return nil
}
