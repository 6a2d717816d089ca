package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

type Action string

const (
	RunAction        Action = "run"
	QueryAction      Action = "query"
	ImportRunsAction Action = "import-runs"
	MintTokenAction  Action = "mint-token"
	ServeStubAction  Action = "serve-stub"
)

type flags struct {
	action   string
	needHelp bool

	target        string
	query         string
	queryFile     string
	operationName string
	token         string
	variables     string

	importRunsBefore string
	importRunsAfter  string
	outputFile       string

	userID uint
	email  string
	role   string
}

func main() {
	var f flags

	flag.StringVar(&f.action, "action", "", "Action to process: run, query, import-runs, mint-token, serve-stub")
	flag.BoolVar(&f.needHelp, "help", false, "Need to print help info for actions")
	flag.StringVar(&f.target, "target", "", "Target name from the config or an endpoint URL")
	flag.StringVar(&f.query, "query", "", "GraphQL document to send")
	flag.StringVar(&f.queryFile, "query-file", "", "Path to a file with the GraphQL document to send")
	flag.StringVar(&f.operationName, "operation-name", "", "Operation to execute when the document has several")
	flag.StringVar(&f.token, "token", "", "Bearer token attached to the request")
	flag.StringVar(&f.variables, "variables", "", "GraphQL variables as a JSON object")
	flag.StringVar(&f.importRunsBefore, "before", "", "Right border for runs import from DynamoDB. Format \"YYYY-MM-DD HH:MM:SS\"")
	flag.StringVar(&f.importRunsAfter, "after", "", "Left border for runs import from DynamoDB. Format \"YYYY-MM-DD HH:MM:SS\"")
	flag.StringVar(&f.outputFile, "output", "imported_runs_data.yml", "Import runs output file path")
	flag.UintVar(&f.userID, "user-id", 0, "user_id claim of the minted token")
	flag.StringVar(&f.email, "email", "", "email claim of the minted token")
	flag.StringVar(&f.role, "role", "", "role claim of the minted token")
	flag.Parse()

	if f.needHelp && f.action == "" {
		fmt.Println("This is a smoke test tool for GraphQL servers.\n" +
			"Specify action type by passing --action argument.\n\n" +
			"run: runs smoke scenarios against configured targets and reports elapsed time percentiles.\n" +
			"query: sends one GraphQL document to a target and prints the response.\n" +
			"import-runs: imports stored runs from DynamoDB for the specified time period.\n" +
			"mint-token: prints a bearer token signed with the configured secret.\n" +
			"serve-stub: starts an in-memory GraphQL server to smoke test against.\n\n" +
			"Use --action=<action> --help for more information.")
		return
	}

	config, err := LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("config cannot be loaded")
	}

	setupLogger(config)
	logger := zlog.Logger

	if config.PrometheusExportAddress != "" {
		startMetricsExporter(config.PrometheusExportAddress)
	}

	var code int
	switch Action(f.action) {
	case RunAction:
		if f.needHelp {
			fmt.Println("Runs smoke scenarios against every configured target.\n" +
				"Supported modes: serial, parallel.\n\n" +
				"serial:\t\tprocess scenarios one by one with smoke.delay between them\n" +
				"parallel:\tprocess scenarios in at most smoke.concurrency goroutines\n\n" +
				"--target limits the run to one target. Results are exported to smoke.output_path\n" +
				"and saved to the configured storage. The exit code is 1 when any scenario fails.")
			return
		}
		code = runSmoke(config, f, logger)

	case QueryAction:
		if f.needHelp {
			fmt.Println("Sends one GraphQL document and prints the response as is.\n\n" +
				"Arguments:\n" +
				"--query or --query-file:\tthe document. Required.\n" +
				"--target:\t\ttarget name or endpoint URL. The first configured target by default.\n" +
				"--variables:\t\tvariables as a JSON object.\n" +
				"--token:\t\tbearer token.\n" +
				"--operation-name:\toperation to execute.")
			return
		}
		code = runQuery(config, f, logger)

	case ImportRunsAction:
		if f.needHelp {
			fmt.Println("Imports runs data from DynamoDB with given time borders.\n\n" +
				"Arguments:\n" +
				"--before:\tsets right border for import. It sets as current time by default.\n" +
				"--after:\tsets left border for import. This is a required argument.\n" +
				"--output:\toutput yaml file.\n\n" +
				"--before and --after arguments must be in \"YYYY-MM-DD HH:MM:SS\" format.")
			return
		}
		code = importRuns(config, f)

	case MintTokenAction:
		if f.needHelp {
			fmt.Println("Prints an HS256 token signed with auth.jwt_secret or JWT_SECRET.\n\n" +
				"Arguments:\n" +
				"--user-id, --email, --role:\tclaims. Config values from auth are used by default.")
			return
		}
		code = mintToken(config, f)

	case ServeStubAction:
		if f.needHelp {
			fmt.Println("Starts the stub GraphQL server on stub.address serving POST /query.\n" +
				"Tokens are validated with stub.jwt_secret, auth.jwt_secret or JWT_SECRET.")
			return
		}
		code = serveStub(config, logger)

	default:
		fmt.Println("Unknown action type. Supported: run, query, import-runs, mint-token, serve-stub. Use --help for more information.")
		code = 2
	}

	os.Exit(code)
}

func setupLogger(config *Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if config.LogFormat == PrettyLogFormat {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid log level")
	}

	zlog.Logger = zlog.Logger.Level(lvl)
}
