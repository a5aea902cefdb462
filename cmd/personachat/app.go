package main

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/suPer8Hu/personachat/internal/ai"
	"github.com/suPer8Hu/personachat/internal/chat"
	"github.com/suPer8Hu/personachat/internal/config"
	"github.com/suPer8Hu/personachat/internal/db"
	"github.com/suPer8Hu/personachat/internal/embeddings"
	"github.com/suPer8Hu/personachat/internal/plugin"
	"github.com/suPer8Hu/personachat/internal/plugins"
	"github.com/suPer8Hu/personachat/internal/rag"
	"github.com/suPer8Hu/personachat/internal/store/redisstore"
	"github.com/suPer8Hu/personachat/internal/vectorstore"
)

// app holds every collaborator built from one Config.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	providers *ai.Registry
	index     *vectorstore.ChromemIndex
	embedder  embeddings.Embedder
	retriever *rag.Retriever
	ingestor  *rag.Ingestor
	chain     *plugin.Chain
	svc       *chat.Service
	redis     *redisstore.Store
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	models := append(chat.Models(), &plugin.State{})
	if err := db.Migrate(gdb, models...); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, db: gdb}
	a.providers = ai.BuildRegistry(ctx, cfg)

	a.index = vectorstore.NewChromemIndex()
	if cfg.VectorPath != "" {
		if err := a.index.Load(cfg.VectorPath); err != nil {
			log.Printf("[app] could not load vector index from %s: %v", cfg.VectorPath, err)
		}
	}

	a.embedder, err = embeddings.New(cfg.Embedding)
	if err != nil {
		log.Printf("[app] document retrieval disabled: %v", err)
		a.embedder = nil
	}
	if a.embedder != nil {
		a.retriever = rag.NewRetriever(a.embedder, a.index, cfg.RAG, cfg.RetrievalTimeout)
		a.ingestor = &rag.Ingestor{
			Embedder:     a.embedder,
			Index:        a.index,
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
		}
	}

	host := &plugin.Host{
		Config:    cfg,
		Providers: a.providers,
		Index:     a.index,
		Embedder:  a.embedder,
		Ingestor:  a.ingestor,
		Retriever: a.retriever,
	}
	a.chain = plugin.Discover(ctx, host, plugins.Builtins(), plugin.NewGormStateStore(gdb),
		cfg.Plugins.Order, cfg.Plugins.Disabled)

	var locker chat.Locker
	if cfg.RedisAddr != "" {
		a.redis, err = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.close()
			return nil, err
		}
		locker = redisstore.NewLocker(a.redis, cfg.LockTTL)
	}

	var retriever chat.Retriever
	if a.retriever != nil {
		retriever = a.retriever
	}
	a.svc = chat.NewService(chat.NewRepo(gdb), a.providers, a.chain, retriever, locker, chat.OptionsFromConfig(cfg))
	return a, nil
}

// saveIndex persists the vector index to cfg.VectorPath.
func (a *app) saveIndex() error {
	if a.cfg.VectorPath == "" {
		return nil
	}
	if err := a.index.Save(a.cfg.VectorPath); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	return nil
}

func (a *app) close() {
	if err := a.providers.Close(); err != nil {
		log.Printf("[app] close providers: %v", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
