// Command cowbtree-inspect is an interactive REPL over an in-memory
// cowbtree.Tree: insert, delete, lookup, range, and dump commands for
// poking at the structure during development.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"cowbtree/btree"
	"cowbtree/keycmp"
	"cowbtree/pagestore"
)

var (
	flagPageSize = flag.Int("page-size", 4096, "fixed page size for the in-memory page manager")
	flagVerbose  = flag.Bool("verbose", false, "log page allocations and frees at debug level")
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *flagVerbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	mgr := pagestore.NewMemManager(*flagPageSize, 0, log)
	tree := btree.New(mgr, keycmp.Bytes{})

	fmt.Println("cowbtree-inspect. Commands: put <table> <key> <value> | get <table> <key> | del <table> <key> | range <table> [from] [to] | height | dump | quit")

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return
		case "put":
			handlePut(log, tree, fields)
		case "get":
			handleGet(tree, fields)
		case "del":
			handleDel(log, tree, fields)
		case "range":
			handleRange(tree, fields)
		case "height":
			handleHeight(tree)
		case "dump":
			handleDump(log, mgr, tree)
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func parseTable(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func handlePut(log zerolog.Logger, tree *btree.Tree, fields []string) {
	if len(fields) != 4 {
		fmt.Println("usage: put <table> <key> <value>")
		return
	}
	table, err := parseTable(fields[1])
	if err != nil {
		fmt.Println("bad table id:", err)
		return
	}
	if _, err := tree.Insert(table, []byte(fields[2]), []byte(fields[3])); err != nil {
		log.Error().Err(err).Msg("insert failed")
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func handleGet(tree *btree.Tree, fields []string) {
	if len(fields) != 3 {
		fmt.Println("usage: get <table> <key>")
		return
	}
	table, err := parseTable(fields[1])
	if err != nil {
		fmt.Println("bad table id:", err)
		return
	}
	guard, ok, err := tree.Lookup(table, []byte(fields[2]))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("(absent)")
		return
	}
	fmt.Println(string(guard.Bytes()))
}

func handleDel(log zerolog.Logger, tree *btree.Tree, fields []string) {
	if len(fields) != 3 {
		fmt.Println("usage: del <table> <key>")
		return
	}
	table, err := parseTable(fields[1])
	if err != nil {
		fmt.Println("bad table id:", err)
		return
	}
	found, err := tree.Delete(table, []byte(fields[2]))
	if err != nil {
		log.Error().Err(err).Msg("delete failed")
		fmt.Println("error:", err)
		return
	}
	if found {
		fmt.Println("ok")
	} else {
		fmt.Println("(absent)")
	}
}

func handleRange(tree *btree.Tree, fields []string) {
	if len(fields) < 2 {
		fmt.Println("usage: range <table> [from] [to]")
		return
	}
	table, err := parseTable(fields[1])
	if err != nil {
		fmt.Println("bad table id:", err)
		return
	}
	start := btree.Unbounded()
	if len(fields) > 2 && fields[2] != "-" {
		start = btree.Included([]byte(fields[2]))
	}
	end := btree.Unbounded()
	if len(fields) > 3 && fields[3] != "-" {
		end = btree.Included([]byte(fields[3]))
	}
	it, err := tree.Range(table, start, end)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for {
		e, ok, err := it.Next()
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		if !ok {
			return
		}
		fmt.Printf("%s = %s\n", e.Key, e.Value)
	}
}

func handleHeight(tree *btree.Tree) {
	h, err := tree.Height()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(h)
}

func handleDump(log zerolog.Logger, mgr pagestore.Manager, tree *btree.Tree) {
	root := tree.Root()
	if root == nil {
		fmt.Println("(empty tree)")
		return
	}
	if err := btree.PrintTree(log.Level(zerolog.DebugLevel), mgr, *root); err != nil {
		fmt.Println("error:", err)
	}
}
