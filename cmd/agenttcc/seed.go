package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
	"github.com/taricklorran/AGENT-TCC/pkg/definition"
)

// Catalog is the shape of a seed file: the catalog documents grouped by
// collection. Agents reference tools by name, managers reference agents by
// id; the references resolve at load time, not at seed time.
type Catalog struct {
	Users    []definition.UserRecord    `yaml:"users" json:"users,omitempty"`
	Managers []definition.ManagerRecord `yaml:"managers" json:"managers,omitempty"`
	Agents   []definition.AgentRecord   `yaml:"agents" json:"agents,omitempty"`
	Tools    []definition.ToolRecord    `yaml:"tools" json:"tools,omitempty"`
}

// SeedCmd loads catalog definitions from a YAML file into MongoDB. Every
// document upserts by its natural key, so re-running a seed is safe.
type SeedCmd struct {
	File string `name:"file" short:"f" required:"" help:"Catalog YAML file." type:"existingfile"`
}

func (c *SeedCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse seed file %s: %w", c.File, err)
	}

	mongoClient, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	store := definition.NewStore(definition.StoreOptions{
		Client:   mongoClient,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})

	// Tools first, then agents, then managers, then users: references
	// always land after their targets.
	for _, t := range catalog.Tools {
		if err := store.UpsertTool(ctx, t); err != nil {
			return err
		}
	}
	for _, a := range catalog.Agents {
		if err := store.UpsertAgent(ctx, a); err != nil {
			return err
		}
	}
	for _, m := range catalog.Managers {
		if err := store.UpsertManager(ctx, m); err != nil {
			return err
		}
	}
	for _, u := range catalog.Users {
		if err := store.UpsertUser(ctx, u); err != nil {
			return err
		}
	}

	fmt.Printf("Seeded %d tools, %d agents, %d managers, %d users into %s\n",
		len(catalog.Tools), len(catalog.Agents), len(catalog.Managers), len(catalog.Users),
		cfg.Mongo.Database)
	return nil
}
