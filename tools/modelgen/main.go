// Command modelgen regenerates the gorm models under
// internal/adapter/repo/gorm/model from a migrated database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gen"
	"gorm.io/gorm"
)

const defaultTables = "sim_runs,sim_snapshots,sim_fault_events"

// jsonbColumns are stored as raw JSON text; the repos marshal them.
var jsonbColumns = map[string][]string{
	"sim_runs":      {"params"},
	"sim_snapshots": {"payload"},
}

func main() {
	dsn := flag.String("dsn", os.Getenv("KPP_DB_DSN"), "postgres dsn")
	out := flag.String("out", "internal/adapter/repo/gorm/model", "output dir for generated models")
	tableList := flag.String("tables", defaultTables, "comma separated tables to generate")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing --dsn or KPP_DB_DSN")
	}
	db, err := gorm.Open(postgres.Open(*dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:      *out,
		ModelPkgPath: "model",
		Mode:         gen.WithoutContext,
	})
	g.UseDB(db)

	tables := strings.Split(*tableList, ",")
	for _, table := range tables {
		table = strings.TrimSpace(table)
		var opts []gen.ModelOpt
		for _, col := range jsonbColumns[table] {
			opts = append(opts, gen.FieldType(col, "string"))
		}
		g.GenerateModel(table, opts...)
	}
	g.Execute()

	fmt.Printf("generated gorm models for %d tables at %s\n", len(tables), *out)
}
