package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lodthe/graphql-smoketest/internal/authtoken"
	"github.com/lodthe/graphql-smoketest/internal/scenario"
	"github.com/lodthe/graphql-smoketest/internal/smokeprocessor"
	"github.com/lodthe/graphql-smoketest/internal/smokerun"
	"github.com/lodthe/graphql-smoketest/internal/stubserver"
	"github.com/lodthe/graphql-smoketest/pkg/gqlclient"

	awsconf "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func runSmoke(config *Config, f flags, logger zerolog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets, err := selectTargets(config.Targets, f.target)
	if err != nil {
		zlog.Error().Err(err).Msg("no targets to run against")
		return 1
	}

	params := config.Smoke.Params
	if params.Token == "" {
		params.Token = defaultToken(config)
	}

	scenarios, err := scenario.Select(config.Smoke.Scenarios, params)
	if err != nil {
		zlog.Error().Err(err).Msg("invalid scenarios")
		return 1
	}

	var saver smokeprocessor.RunSaver
	repo, closeRepo, err := openStorage(ctx, config)
	if err != nil {
		zlog.Error().Err(err).Msg("storage cannot be opened")
		return 1
	}
	defer closeRepo()
	if repo != nil {
		saver = repo
	}

	processor := smokeprocessor.New(&smokeprocessor.Config{
		Mode:        config.Smoke.Mode,
		Concurrency: config.Smoke.Concurrency,
		Delay:       config.Smoke.Delay,
		OutputPath:  config.Smoke.OutputPath,
	}, logger, newRunner(config, logger), saver)

	report, err := processor.Process(ctx, targets, scenarios)
	if err != nil {
		zlog.Error().Err(err).Msg("failed to process smoke scenarios")
		if report == nil {
			return 1
		}
	}

	printReport(os.Stdout, report, config.Smoke.Percentiles)

	if err != nil || !report.Passed() {
		return 1
	}

	return 0
}

func printReport(w io.Writer, report *smokeprocessor.Report, percentiles []int) {
	for _, run := range report.Runs {
		fmt.Fprintf(w, "%-6s %-24s %-16s %s", run.Status, run.Scenario, run.Target, run.Elapsed)
		if run.Failure != "" {
			fmt.Fprintf(w, "  %s", run.Failure)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%d runs, %d failed\n", len(report.Runs), len(report.Failed()))
	smokeprocessor.NewAggregator(report.Runs).WritePercentiles(w, percentiles)
}

func runQuery(config *Config, f flags, logger zerolog.Logger) int {
	query := f.query
	if f.queryFile != "" {
		raw, err := os.ReadFile(f.queryFile)
		if err != nil {
			zlog.Error().Err(err).Msg("query file cannot be read")
			return 1
		}
		query = string(raw)
	}
	if strings.TrimSpace(query) == "" {
		fmt.Println("Please, specify the document by passing --query or --query-file. Use --help for more information.")
		return 2
	}

	targets, err := selectTargets(config.Targets, f.target)
	if err != nil {
		zlog.Error().Err(err).Msg("no target to query")
		return 1
	}

	opts := []gqlclient.RequestOption{
		gqlclient.WithBearerToken(f.token),
		gqlclient.WithOperationName(f.operationName),
	}
	if f.variables != "" {
		var vars map[string]interface{}
		err = json.Unmarshal([]byte(f.variables), &vars)
		if err != nil {
			zlog.Error().Err(err).Msg("--variables must be a JSON object")
			return 2
		}
		opts = append(opts, gqlclient.WithVariables(vars))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resp, err := newRunner(config, logger).Query(ctx, targets[0].Endpoint, query, opts...)
	if err != nil {
		zlog.Error().Err(err).Str("endpoint", targets[0].Endpoint).Msg("query failed")
		return 1
	}

	var out bytes.Buffer
	err = json.Indent(&out, resp.Raw, "", "  ")
	if err != nil {
		out.Reset()
		out.Write(resp.Raw)
	}
	fmt.Println(out.String())

	if resp.HasErrors() {
		zlog.Warn().Int("status", resp.StatusCode).Err(resp.Err()).Msg("the response carries errors")
	}

	return 0
}

func importRuns(config *Config, f flags) int {
	if f.importRunsAfter == "" {
		fmt.Println("Please, specify left time border for runs import by passing --after argument. Use --help for more information.")
		return 2
	}

	runsAfter, err := time.Parse(time.DateTime, f.importRunsAfter)
	if err != nil {
		fmt.Printf("invalid time format for \"after\" argument: %s\n", err)
		return 2
	}

	runsBefore := time.Now()
	if f.importRunsBefore != "" {
		runsBefore, err = time.Parse(time.DateTime, f.importRunsBefore)
		if err != nil {
			fmt.Printf("invalid time format for \"before\" argument: %s\n", err)
			return 2
		}
	}

	ctx := context.Background()
	client, err := newDynamoDBClient(ctx, config)
	if err != nil {
		zlog.Error().Err(err).Msg("failed to load AWS config")
		return 1
	}

	repo := smokerun.NewDynamoDBRepository(client, config.AWS.RunsTableName)
	count, err := smokerun.Import(ctx, repo, runsAfter, runsBefore, f.outputFile)
	if err != nil {
		zlog.Error().Err(err).Msg("failed to import runs")
		return 1
	}

	zlog.Info().Int("runs", count).Str("output", f.outputFile).Msg("runs imported")

	return 0
}

func mintToken(config *Config, f flags) int {
	issuer, err := authtoken.NewIssuer(jwtSecret(config.Auth.JWTSecret), config.Auth.TokenTTL)
	if err != nil {
		zlog.Error().Err(err).Msgf("set auth.jwt_secret or %s", authtoken.SecretEnv)
		return 1
	}

	userID, email, role := config.Auth.UserID, config.Auth.Email, config.Auth.Role
	if f.userID != 0 {
		userID = f.userID
	}
	if f.email != "" {
		email = f.email
	}
	if f.role != "" {
		role = f.role
	}

	token, err := issuer.Mint(userID, email, role)
	if err != nil {
		zlog.Error().Err(err).Msg("token cannot be minted")
		return 1
	}

	fmt.Println(token)

	return 0
}

func serveStub(config *Config, logger zerolog.Logger) int {
	secret := config.Stub.JWTSecret
	if secret == "" {
		secret = jwtSecret(config.Auth.JWTSecret)
	}

	issuer, err := authtoken.NewIssuer(secret, config.Auth.TokenTTL)
	if err != nil {
		zlog.Error().Err(err).Msgf("set stub.jwt_secret, auth.jwt_secret or %s", authtoken.SecretEnv)
		return 1
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	stub := stubserver.New(logger, stubserver.Config{
		Timeout:      config.Stub.ServerTimeout,
		SeedProducts: config.Stub.SeedProducts,
	}, issuer)

	srv := &http.Server{
		Addr:              config.Stub.ListeningAddress,
		Handler:           stub.Handler(),
		ReadTimeout:       20 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.Stub.ServerTimeout + 5*time.Second,
	}
	go func() {
		zlog.Info().Str("address", config.Stub.ListeningAddress).Msg("starting the stub server")

		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server listen failed")
		}
	}()

	<-stop

	shutdownCtx, shutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdown()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		zlog.Error().Err(err).Msg("server shutdown failed")
		return 1
	}

	return 0
}

func newRunner(config *Config, logger zerolog.Logger) *gqlclient.Runner {
	return gqlclient.New(logger, gqlclient.Config{
		Timeout:   config.Client.Timeout,
		MaxRPS:    config.Client.MaxRPS,
		UserAgent: config.Client.UserAgent,
	})
}

// selectTargets returns the configured targets, the one named by filter,
// or an ad hoc target when filter is an URL.
func selectTargets(targets []smokeprocessor.Target, filter string) ([]smokeprocessor.Target, error) {
	if filter == "" {
		if len(targets) == 0 {
			return nil, errors.New("no targets configured, pass --target or fill targets in the config")
		}

		return targets, nil
	}

	for _, t := range targets {
		if t.Name == filter {
			return []smokeprocessor.Target{t}, nil
		}
	}

	if strings.Contains(filter, "://") {
		return []smokeprocessor.Target{{Name: filter, Endpoint: filter}}, nil
	}

	return nil, errors.Errorf("unknown target %s", filter)
}

// defaultToken mints a token from the auth section when a secret is available.
func defaultToken(config *Config) string {
	secret := jwtSecret(config.Auth.JWTSecret)
	if secret == "" {
		return ""
	}

	issuer, err := authtoken.NewIssuer(secret, config.Auth.TokenTTL)
	if err != nil {
		return ""
	}

	token, err := issuer.Mint(config.Auth.UserID, config.Auth.Email, config.Auth.Role)
	if err != nil {
		zlog.Warn().Err(err).Msg("token cannot be minted, catalogue mutations are sent anonymously")
		return ""
	}

	return token
}

// openStorage returns nil repository when storage is disabled.
func openStorage(ctx context.Context, config *Config) (smokerun.Repository, func(), error) {
	nop := func() {}

	switch config.Storage.Type {
	case StorageSQLite:
		repo, err := smokerun.OpenSQLite(config.Storage.SQLitePath)
		if err != nil {
			return nil, nop, err
		}

		return repo, func() {
			err := repo.Close()
			if err != nil {
				zlog.Error().Err(err).Msg("sqlite cannot be closed")
			}
		}, nil

	case StorageDynamoDB:
		client, err := newDynamoDBClient(ctx, config)
		if err != nil {
			return nil, nop, errors.Wrap(err, "failed to load AWS config")
		}

		return smokerun.NewDynamoDBRepository(client, config.AWS.RunsTableName), nop, nil

	default:
		return nil, nop, nil
	}
}

func newDynamoDBClient(ctx context.Context, config *Config) (*dynamodb.Client, error) {
	var awsOpts []func(*awsconf.LoadOptions) error
	if config.AWS.AccessKeyID != "" {
		// Use the configured keys, otherwise the SDK picks credentials from available sources.
		awsOpts = append(awsOpts, awsconf.WithCredentialsProvider(config))
	}
	if config.AWS.Region != "" {
		awsOpts = append(awsOpts, awsconf.WithRegion(config.AWS.Region))
	}

	awsConfig, err := awsconf.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsConfig), nil
}

func startMetricsExporter(address string) {
	go func() {
		zlog.Info().Str("address", address).Msg("starting the prometheus exporter")

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricSrv := &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		}

		err := metricSrv.ListenAndServe()
		if err != nil {
			zlog.Error().Err(err).Msg("prometheus exporter failed")
		}
	}()
}
