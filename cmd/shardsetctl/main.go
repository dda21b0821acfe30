// shardsetctl inspects and probes shard-set configuration: validate a
// config file, list the sets and shards it defines, ping every endpoint, or
// fan a procedure call out to a set and print the rows that come back.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pavandhadge/shardset"
	"github.com/pavandhadge/shardset/config"
	"github.com/pavandhadge/shardset/grpcconn"
	"github.com/pavandhadge/shardset/redisconn"
	"github.com/pavandhadge/shardset/sqlconn"
)

func main() {
	var (
		configPath   = flag.String("config", config.DefaultPath(), "path to the shard-set configuration file")
		validateOnly = flag.Bool("validate", false, "validate the configuration and exit")
		setName      = flag.String("set", "", "shard set to operate on")
		ping         = flag.Bool("ping", false, "probe every endpoint of the selected shard set")
		proc         = flag.String("proc", "", "stored procedure to fan out to the selected shard set")
		shardParam   = flag.String("shard-param", "", "parameter name that carries the shard id")
		paramsJSON   = flag.String("params", "{}", "base procedure parameters as JSON")
		first        = flag.Bool("first", false, "return the first answer instead of all answers")
		useWrite     = flag.Bool("write", false, "route the call to write endpoints")
		timeout      = flag.Duration("timeout", 10*time.Second, "overall timeout")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("shardsetctl: %v", err)
	}
	if *validateOnly {
		log.Printf("shardsetctl: %s is valid (%d shard sets)", *configPath, len(cfg.ShardSets))
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("shardsetctl: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	coll, err := config.Build(cfg, config.StringID, openEndpoint, shardset.WithLogger(logger))
	if err != nil {
		log.Fatalf("shardsetctl: %v", err)
	}
	defer func() { _ = coll.Close() }()

	if *setName == "" {
		listSets(coll)
		return
	}

	set, ok := coll.Set(*setName)
	if !ok {
		log.Fatalf("shardsetctl: shard set %q is not configured", *setName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *ping {
		if err := set.Ping(ctx); err != nil {
			log.Fatalf("shardsetctl: ping failed: %v", err)
		}
		log.Printf("shardsetctl: all %d shards of %q are reachable", set.Len(), *setName)
		return
	}

	if *proc == "" {
		log.Fatalf("shardsetctl: nothing to do; pass -ping or -proc")
	}

	var params shardset.Parameters
	if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
		log.Fatalf("shardsetctl: bad -params: %v", err)
	}
	if params == nil {
		params = shardset.Parameters{}
	}

	query := shardset.Query[string]{
		Procedure:      *proc,
		Parameters:     params,
		ShardParameter: *shardParam,
		UseWrite:       *useWrite,
	}
	handler := func(rows []shardset.Row, _ any) ([]shardset.Row, bool, error) {
		return rows, len(rows) > 0, nil
	}

	if *first {
		rows, ok, err := shardset.QueryFirst(ctx, set, query, handler)
		if err != nil {
			log.Fatalf("shardsetctl: %v", err)
		}
		if !ok {
			log.Printf("shardsetctl: no shard had an answer")
			return
		}
		printRows(rows)
		return
	}

	answers, err := shardset.QueryAll(ctx, set, query, handler)
	if err != nil {
		log.Fatalf("shardsetctl: %v", err)
	}
	for _, rows := range answers {
		printRows(rows)
	}
}

func listSets(coll *shardset.Collection[string]) {
	for _, name := range coll.Names() {
		set, _ := coll.Set(name)
		fmt.Printf("%s (%d shards)\n", name, set.Len())
		for _, id := range set.IDs() {
			sh, err := set.Get(id)
			if err != nil {
				continue
			}
			fmt.Printf("  %s  read=%s write=%s\n", id, sh.Read().Description(), sh.Write().Description())
		}
	}
}

func printRows(rows []shardset.Row) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		log.Fatalf("shardsetctl: %v", err)
	}
}

// openEndpoint maps a configured driver onto its adapter.
func openEndpoint(conn config.Connection) (shardset.DataConnection, error) {
	switch conn.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     conn.Address,
			Password: conn.Options["password"],
		})
		return redisconn.New(client, nil), nil
	case "sql":
		driver := conn.Options["driver"]
		if driver == "" {
			driver = "sqlite"
		}
		db, err := sql.Open(driver, conn.Address)
		if err != nil {
			return nil, err
		}
		return sqlconn.New(db, conn.Address), nil
	case "grpc":
		return grpcconn.Dial(conn.Address)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", shardset.ErrConfiguration, conn.Driver)
	}
}
