package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	redisadapter "github.com/academiq/academiq-api/internal/adapters/redis"
	"github.com/academiq/academiq-api/internal/bootstrap"
	"github.com/redis/go-redis/v9"
)

// infra holds the connections an admin command needs. Each field is nil
// when the command did not request that backend.
type infra struct {
	DB       *sql.DB
	Redis    redis.UniversalClient
	RoleDocs *redisadapter.RoleDocStore
	Sessions *redisadapter.SessionStore
}

type infraOptions struct {
	NeedDB    bool
	NeedRedis bool
}

func connectInfra(ctx *commandContext, opts infraOptions) (*infra, error) {
	result := &infra{}

	if opts.NeedDB {
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig: ctx.Config.Postgres,
			Logger:   ctx.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		result.DB = db
	}

	if opts.NeedRedis {
		client, err := maybeConnectRedis(ctx)
		if err != nil {
			closeInfra(ctx, result)
			return nil, err
		}
		if client != nil {
			roleDocs, storeErr := redisadapter.NewRoleDocStore(client, redisadapter.RoleDocStoreOptions{
				Prefix:    ctx.Config.Gate.RolePrefix,
				RoleField: ctx.Config.Gate.RoleField,
			})
			if storeErr != nil {
				closeInfra(ctx, result)
				return nil, fmt.Errorf("build role store: %w", storeErr)
			}
			result.Redis = client
			result.RoleDocs = roleDocs
			result.Sessions = redisadapter.NewSessionStoreWithPrefix(client, "session:")
		}
	}

	return result, nil
}

// maybeConnectRedis connects when Redis is configured and returns nil
// otherwise, so commands can degrade to the legacy store alone.
//
//nolint:ireturn // redis.UniversalClient mirrors the bootstrap connector's return type.
func maybeConnectRedis(ctx *commandContext) (redis.UniversalClient, error) {
	if !hasRedisConfig(ctx.Config.Redis.URI, ctx.Config.Redis.SentinelNodes, ctx.Config.Redis.ClusterNodes) {
		ctx.Logger.WarnContext(ctx.Ctx, "redis not configured, skipping role document store")
		return nil, nil
	}

	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: ctx.Config.Redis,
		Logger:      ctx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func hasRedisConfig(uri string, sentinels, clusterNodes []string) bool {
	if strings.TrimSpace(uri) != "" {
		return true
	}
	return len(sentinels) > 0 || len(clusterNodes) > 0
}

func closeInfra(ctx *commandContext, inf *infra) {
	if inf == nil {
		return
	}
	var errs []error
	if inf.Redis != nil {
		if err := inf.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if inf.DB != nil {
		if err := inf.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if len(errs) > 0 {
		ctx.Logger.WarnContext(ctx.Ctx, "close connections", "error", errors.Join(errs...))
	}
}
