package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/constant"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/jobs"
	"github.com/xeptore/sermondl/log"
	"github.com/xeptore/sermondl/sermonaudio"
	"github.com/xeptore/sermondl/sermonaudio/auth"
	"github.com/xeptore/sermondl/sermonaudio/types"
	"github.com/xeptore/sermondl/store"
)

func main() {
	logger := log.NewDefault()

	downloadFlags := []cli.Flag{
		//nolint:exhaustruct
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Download directory",
			Value:   "downloads",
		},
		//nolint:exhaustruct
		&cli.BoolFlag{
			Name:  "video",
			Usage: "Download video instead of audio",
		},
		//nolint:exhaustruct
		&cli.StringFlag{
			Name:  "quality",
			Usage: "Preferred quality tier (low, high, or 1080p for video); other tiers are tried after it",
		},
		//nolint:exhaustruct
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write the JSON report to this file instead of printing it",
		},
	}

	//nolint:exhaustruct
	app := &cli.Command{
		Name:    "sermondl",
		Version: constant.Version,
		Metadata: map[string]any{
			"compiled_at": constant.CompileTime,
		},
		Suggest:                    true,
		Usage:                      "SermonAudio bulk downloader",
		EnableShellCompletion:      true,
		ShellCompletionCommandName: "shell-completion",
		AllowExtFlags:              false,
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Config file path",
				Required: false,
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:      "broadcaster",
				Usage:     "Download every sermon of broadcasters",
				ArgsUsage: "<id-or-url>...",
				Flags:     downloadFlags,
				Action:    collectionAction(types.OwnerKindBroadcaster),
			},
			//nolint:exhaustruct
			{
				Name:      "speaker",
				Usage:     "Download every sermon of speakers",
				ArgsUsage: "<id-or-url>...",
				Flags:     downloadFlags,
				Action:    collectionAction(types.OwnerKindSpeaker),
			},
			//nolint:exhaustruct
			{
				Name:      "series",
				Usage:     "Download every sermon of series",
				ArgsUsage: "<id-or-url>...",
				Flags:     downloadFlags,
				Action:    collectionAction(types.OwnerKindSeries),
			},
			//nolint:exhaustruct
			{
				Name:      "sermon",
				Usage:     "Download single sermons",
				ArgsUsage: "<id-or-url>...",
				Flags:     downloadFlags,
				Action:    sermonAction,
			},
			{
				Name:  "auth",
				Usage: "API token commands",
				Commands: []*cli.Command{
					//nolint:exhaustruct
					{
						Name:   "refresh",
						Usage:  "Scrape a fresh API token and store it",
						Action: authRefresh,
					},
					//nolint:exhaustruct
					{
						Name:   "show",
						Usage:  "Show the API token that would be used",
						Action: authShow,
					},
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			os.Exit(1)
		}

		var exitCode exitCodeError
		if errors.As(err, &exitCode) {
			os.Exit(int(exitCode))
		}

		logger.Error().Err(err).Msg("Application exited with error")
		os.Exit(10)
	}
}

type exitCodeError int

func (e exitCodeError) Error() string {
	return "error with exit code: " + strconv.Itoa(int(e))
}

func load(cmd *cli.Command) (zerolog.Logger, *config.Config, error) {
	logger := log.NewDefault()

	if err := godotenv.Load(); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return logger, nil, fmt.Errorf("load .env file: %v", err)
		}
		logger.Debug().Msg(".env file was not found")
	} else {
		logger.Debug().Msg(".env file was loaded")
	}

	conf, err := config.Load(cmd.String("config"))
	if nil != err {
		return logger, nil, fmt.Errorf("load config: %v", err)
	}

	logger = log.FromConfig(conf.Log)

	logger.Debug().Dict("config", conf.ToDict()).Msg("Config loaded")

	return logger, conf, nil
}

// newClient opens the endpoint store and builds a client on top of it. The
// returned close releases both.
func newClient(logger zerolog.Logger, conf *config.Config) (*sermonaudio.Client, func(), error) {
	st, err := store.Open(conf.State.Path)
	if nil != err {
		if !errors.Is(err, store.ErrLocked) {
			return nil, nil, fmt.Errorf("open state store: %v", err)
		}

		// Endpoints are discovered again without the cross-run cache.
		logger.Warn().Str("path", conf.State.Path).Msg("State store is in use by another process, continuing without it")
		client := sermonaudio.NewClient(conf, nil)

		return client, client.Close, nil
	}

	client := sermonaudio.NewClient(conf, st)
	logger.Debug().Msg("SermonAudio client created")

	return client, func() {
		client.Close()
		if err := st.Close(); nil != err {
			logger.Error().Err(err).Msg("Failed to close state store")
		}
	}, nil
}

func preference(cmd *cli.Command, conf config.Downloader) (types.QualityPreference, error) {
	media := lo.Ternary(cmd.Bool("video"), types.MediaVideo, types.MediaAudio)

	quality := cmd.String("quality")
	if quality == "" {
		quality = lo.Ternary(media == types.MediaVideo, conf.VideoQuality, conf.AudioQuality)
	}

	pref := types.QualityPreference{Media: media, Quality: types.Quality(quality)}
	if err := pref.Validate(); nil != err {
		return pref, err
	}

	return pref, nil
}

func collectionAction(kind types.OwnerKind) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger, conf, err := load(cmd)
		if nil != err {
			return err
		}

		if cmd.Args().Len() == 0 {
			logger.Error().Msgf("No %s given", kind)
			return exitCodeError(2)
		}

		ids := make([]string, 0, cmd.Args().Len())
		for _, arg := range cmd.Args().Slice() {
			id, err := sermonaudio.ParseOwnerTarget(kind, arg)
			if nil != err {
				logger.Error().Err(err).Msg("Invalid target")
				return exitCodeError(2)
			}
			ids = append(ids, id)
		}
		ids = lo.Uniq(ids)

		pref, err := preference(cmd, conf.Downloader)
		if nil != err {
			logger.Error().Err(err).Msg("Invalid quality")
			return exitCodeError(2)
		}

		client, closeClient, err := newClient(logger, conf)
		if nil != err {
			return err
		}
		defer closeClient()

		var (
			out     = cmd.String("out")
			reports = make([]*types.JobReport, len(ids))
		)
		list := lo.Map(ids, func(id string, i int) jobs.Job {
			return jobs.Job{
				Name: kind.String() + "/" + id,
				Run: func(ctx context.Context, logger zerolog.Logger) error {
					col := types.Collection{Kind: kind, ID: id, Name: ""}
					report, err := client.Run(ctx, logger, col, out, pref)
					reports[i] = report

					return err
				},
			}
		})

		runErr := jobs.NewRunner(conf.Jobs.Concurrency).Run(ctx, logger, list)

		reports = lo.Compact(reports)
		if err := writeReports(cmd.String("report"), reports); nil != err {
			logger.Error().Err(err).Msg("Failed to write report")
		}

		return finish(logger, runErr, reports)
	}
}

func sermonAction(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := load(cmd)
	if nil != err {
		return err
	}

	if cmd.Args().Len() == 0 {
		logger.Error().Msg("No sermon given")
		return exitCodeError(2)
	}

	ids := make([]string, 0, cmd.Args().Len())
	for _, arg := range cmd.Args().Slice() {
		id, err := sermonaudio.ParseSermonTarget(arg)
		if nil != err {
			logger.Error().Err(err).Msg("Invalid target")
			return exitCodeError(2)
		}
		ids = append(ids, id)
	}
	ids = lo.Uniq(ids)

	pref, err := preference(cmd, conf.Downloader)
	if nil != err {
		logger.Error().Err(err).Msg("Invalid quality")
		return exitCodeError(2)
	}

	client, closeClient, err := newClient(logger, conf)
	if nil != err {
		return err
	}
	defer closeClient()

	var (
		out    = cmd.String("out")
		report = &types.JobReport{ //nolint:exhaustruct
			Kind:     "sermon",
			Outcomes: lo.Map(ids, func(id string, _ int) types.Outcome { return types.Outcome{ItemID: id} }), //nolint:exhaustruct
		}
	)
	list := lo.Map(ids, func(id string, i int) jobs.Job {
		return jobs.Job{
			Name: "sermon/" + id,
			Run: func(ctx context.Context, logger zerolog.Logger) error {
				outcome, err := client.DownloadSermon(ctx, logger, id, out, pref)
				report.Outcomes[i] = outcome

				return err
			},
		}
	})

	runErr := jobs.NewRunner(conf.Jobs.Concurrency).Run(ctx, logger, list)
	report.Canceled = nil != ctx.Err()

	reports := []*types.JobReport{report}
	if err := writeReports(cmd.String("report"), reports); nil != err {
		logger.Error().Err(err).Msg("Failed to write report")
	}

	return finish(logger, runErr, reports)
}

func finish(logger zerolog.Logger, runErr error, reports []*types.JobReport) error {
	if nil != runErr {
		if errors.Is(runErr, auth.ErrAuth) {
			logger.Error().Err(runErr).Msg("Could not acquire an API token. Set SERMONAUDIO_FALLBACK_API_KEY to a known key to continue anyway.")
			return exitCodeError(3)
		}

		return fmt.Errorf("run jobs: %w", runErr)
	}

	if lo.SomeBy(reports, func(r *types.JobReport) bool { return r.Count(types.OutcomeFailed) > 0 }) {
		return exitCodeError(4)
	}

	return nil
}

func authRefresh(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := load(cmd)
	if nil != err {
		return err
	}

	a := auth.New(httputil.NewSession(conf.SermonAudio.UserAgent), conf.SermonAudio, conf.Auth, conf.Timeouts)
	cred, err := a.Refresh(ctx, logger)
	if nil != err {
		if errors.Is(err, auth.ErrAuth) {
			logger.Error().Err(err).Msg("Could not scrape a fresh API token")
			return exitCodeError(3)
		}

		return fmt.Errorf("refresh token: %w", err)
	}
	logger.Info().Dict("credential", cred.ToDict()).Msg("API token refreshed")

	fmt.Fprintln(os.Stdout, cred)

	return nil
}

func authShow(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := load(cmd)
	if nil != err {
		return err
	}

	a := auth.New(httputil.NewSession(conf.SermonAudio.UserAgent), conf.SermonAudio, conf.Auth, conf.Timeouts)
	cred, err := a.Get(ctx, logger, false)
	if nil != err {
		if errors.Is(err, auth.ErrAuth) {
			logger.Error().Err(err).Msg("No usable API token")
			return exitCodeError(3)
		}

		return fmt.Errorf("get token: %w", err)
	}

	fmt.Fprintln(os.Stdout, cred)

	return nil
}
