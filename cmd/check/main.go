package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"promowatch/internal/config"
	"promowatch/internal/models"
	"promowatch/internal/ozon"
	"promowatch/internal/rules"
)

func main() {
	var (
		url      = flag.String("url", "", "Product page URL")
		okConds  = flag.String("ok", "", "OK conditions, comma-separated")
		errConds = flag.String("nok", "", "Error conditions, comma-separated")
		headless = flag.Bool("headless", true, "Run the browser headless")
		fresh    = flag.Bool("fresh", false, "Use a throwaway browser profile")
		asJSON   = flag.Bool("json", false, "Print the full result as JSON")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -url https://www.ozon.ru/product/example-123\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -url https://www.ozon.ru/product/example-123 -ok \"подарок\" -json\n", os.Args[0])
	}

	flag.Parse()
	_ = godotenv.Load()

	if *url == "" {
		fmt.Fprintf(os.Stderr, "Error: URL is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if !ozon.IsProductURL(*url) {
		fmt.Fprintf(os.Stderr, "Error: not a product page URL\n")
		os.Exit(1)
	}

	cfg := config.Load()
	sess, err := ozon.NewSession(ozon.SessionConfig{
		Headless:     *headless,
		UserDataDir:  cfg.UserDataDir,
		FreshProfile: *fresh,
		PageTimeout:  cfg.PageTimeout,
		GetRetries:   cfg.GetRetries,
		LabelWait:    cfg.LabelWait,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start browser: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	var res models.CheckResult
	if sess.Open(context.Background(), *url) {
		res = sess.CheckCurrent(*url)
	} else {
		res = models.CheckResult{URL: *url, Error: "Не удалось открыть страницу после повторов."}
	}

	set := rules.Set{
		OkConditions:    splitConds(*okConds),
		ErrorConditions: splitConds(*errConds),
	}
	verdict, reason, trace := rules.Evaluate(res.LabelText, res.HasLabel, set)

	if *asJSON {
		out := models.Result{CheckResult: res, Verdict: verdict, VerdictReason: reason, Debug: &trace}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("url:         %s\n", res.URL)
	fmt.Printf("has_label:   %v\n", res.HasLabel)
	fmt.Printf("label_text:  %s\n", res.LabelText)
	fmt.Printf("seller_name: %s\n", res.SellerName)
	if res.SellerOK != nil {
		fmt.Printf("seller_ok:   %v\n", *res.SellerOK)
	} else {
		fmt.Printf("seller_ok:   unknown\n")
	}
	fmt.Printf("verdict:     %s (%s)\n", verdict, reason)
	if res.Error != "" {
		fmt.Printf("error:       %s\n", res.Error)
	}
}

func splitConds(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
