// Command semparsedemo is an interactive REPL over the arithmetic example
// grammar: type an utterance, see its top denotation.
package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/plan-systems/klog"

	"github.com/nlparse/semparse/examples/arithmetic"
)

func showHelp() {
	fmt.Print(`
Type an utterance and see its top denotation, e.g.:
  one plus two
  minus minus three
  What is 43 plus 21?
  How about 4 plus seven?
  What is 2 to the 3?

help for this message, empty line or Ctrl-D to exit.

`)
}

func main() {
	flag.Set("logtostderr", "true")
	fset := flag.NewFlagSet("semparsedemo", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Parse(nil)
	debug := flag.Bool("debug", false, "dump every chart cell's derivations via go-spew as they're filled")
	flag.Parse()

	engine, err := arithmetic.NewEngine()
	if err != nil {
		klog.Fatalf("building engine: %v", err)
	}
	engine.Parser().SetDebug(*debug)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("semparsedemo. help for quick help, empty line or Ctrl-D to exit.")
	fmt.Println()

	for {
		input, err := line.Prompt(">> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			break
		}
		if err != nil {
			klog.Errorf("reading input: %v", err)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			break
		}
		line.AppendHistory(input)

		if input == "help" {
			showHelp()
			continue
		}

		denotation, err := engine.TopDenotation(input)
		if err != nil {
			fmt.Println(" !", err)
			continue
		}
		if denotation == nil {
			fmt.Println(" ? no parse")
			continue
		}
		fmt.Printf(" : %v\n", denotation)
	}

	fmt.Println()
}
