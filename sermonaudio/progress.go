package sermonaudio

import (
	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/sermonaudio/downloader"
	"github.com/xeptore/sermondl/unit"
)

const unknownTotalStep = 8 * unit.Mebibyte

// progressLogger reports a download at debug level once per tenth of the
// announced size, or once per unknownTotalStep bytes when there is none.
func progressLogger(logger zerolog.Logger) downloader.Progress {
	last := int64(-1)

	return func(written, total int64) {
		var mark int64
		if total > 0 {
			mark = written * 10 / total
		} else {
			mark = written / unknownTotalStep
		}
		if mark == last {
			return
		}
		last = mark

		e := logger.Debug().Str("written", unit.Human(written))
		if total > 0 {
			e = e.Str("total", unit.Human(total)).Int64("percent", mark*10)
		}
		e.Msg("Download progress")
	}
}
