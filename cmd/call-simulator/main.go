// Command call-simulator drives a conversation against the engine from the
// terminal, standing in for the telephony provider. Useful for trying prompt
// and schema changes without placing a call.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation"
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction/llm"
	"github.com/isaacasamoah/piano-move-ai/internal/geo"
	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
	"github.com/isaacasamoah/piano-move-ai/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	// Simulated calls always run against the in-process registry.
	cfg.RedisURL = ""

	log := logger.New(cfg.Env)
	ctx := context.Background()

	catalog := bizconfig.NewLoader(cfg.GetBusinessConfigDir(), validator.New(), log)
	if err := catalog.LoadAll(); err != nil {
		panic("failed to load business configs: " + err.Error())
	}

	var primary extraction.Extractor
	if cfg.IsLLMExtractorEnabled() {
		primary, err = llm.New(ctx, cfg, log)
		if err != nil {
			panic("failed to initialize model extractor: " + err.Error())
		}
		fmt.Println("(model extractor enabled)")
	} else {
		fmt.Println("(no GEMINI_API_KEY, deterministic extractor only)")
	}

	module, err := conversation.NewModule(cfg, catalog, primary, extraction.NewFallback(), geo.NewService(cfg, log), events.NewInMemoryBus(log), log)
	if err != nil {
		panic("failed to initialize conversation module: " + err.Error())
	}
	engine := module.Service()

	callID := uuid.NewString()
	res, err := engine.Begin(ctx, callID, "+61400000000", "+12299223706")
	if err != nil {
		panic("failed to start call: " + err.Error())
	}
	fmt.Printf("\nagent: %s\n", res.Reply)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you:   ")
		if !scanner.Scan() {
			break
		}

		res, err := engine.Advance(ctx, callID, scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			break
		}
		fmt.Printf("agent: %s\n", res.Reply)

		if res.Complete && res.Quote != nil {
			fmt.Printf("\n[quote] base %.2f + distance %.2f + access %.2f + protection %.2f = %.2f\n",
				res.Quote.BaseAmount, res.Quote.DistanceCharge, res.Quote.UnitCharge, res.Quote.ProtectionCharge, res.Quote.Total)
		}
		if res.ShouldEndCall {
			break
		}
	}

	_ = engine.End(ctx, callID)
	fmt.Println("\n(call ended)")
}
