package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	"github.com/crystal-mush/beastmaster/pkg/sqlstore"
)

func main() {
	file := flag.String("file", "", "Catalog file: .yaml list, or a legacy \"Name,Id,Name,Id\" list")
	rarity := flag.String("rarity", gamedb.RarityNormal, "Rarity for rows from a legacy list (normal, exotic, rare, rare_exotic)")
	driver := flag.String("driver", sqlstore.DriverSQLite, "Database driver (sqlite or pgx)")
	dsn := flag.String("dsn", "data/beastmaster.db", "Database DSN or sqlite path")
	list := flag.Bool("list", false, "Print the catalog after loading")
	flag.Parse()

	if *file == "" && !*list {
		fmt.Fprintln(os.Stderr, "Usage: tameloader -file <catalog> [options]")
		fmt.Fprintln(os.Stderr, "       tameloader -list [-driver pgx -dsn <url>]")
		fmt.Fprintln(os.Stderr, "  -file <path>    YAML or legacy list to import into beastmaster_tames")
		fmt.Fprintln(os.Stderr, "  -rarity <tag>   Rarity applied to legacy list rows")
		fmt.Fprintln(os.Stderr, "  -list           Print the catalog summary")
		os.Exit(1)
	}

	store, err := sqlstore.Open(*driver, *dsn, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	ctx := context.Background()

	if *file != "" {
		fmt.Printf("Loading catalog: %s\n", *file)
		start := time.Now()
		pets, err := LoadCatalogFile(*file, *rarity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		n, err := store.ImportTames(ctx, pets)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d pets in %v\n", n, time.Since(start))
	}

	if *list {
		pets, err := store.LoadTames(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		printSummary(pets)
	}
}

func printSummary(pets []gamedb.PetInfo) {
	fmt.Println("=== CATALOG SUMMARY ===")
	counts := make(map[string]int)
	for _, p := range pets {
		counts[p.Rarity]++
	}
	rarities := make([]string, 0, len(counts))
	for r := range counts {
		rarities = append(rarities, r)
	}
	sort.Strings(rarities)
	for _, r := range rarities {
		fmt.Printf("  %-12s %d\n", r+":", counts[r])
	}
	fmt.Printf("  %-12s %d\n\n", "total:", len(pets))

	for _, p := range pets {
		fmt.Printf("  %6d  %-24s family %-3d %s\n", p.Entry, p.Name, p.Family, p.Rarity)
	}
}
