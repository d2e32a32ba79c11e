package tools

import (
	"context"
	"fmt"
)

func (t *Toolset) outreachDraft(_ context.Context, args map[string]any) (any, error) {
	productName := argString(args, "product_name", "Product")
	quantity := argInt(args, "quantity", 200)

	msg := fmt.Sprintf(
		"Hello! We're interested in sourcing %s.\n"+
			"Please share MOQ, unit price for %d units, lead time, and shipping options.\n"+
			"Also confirm packaging details and whether you can provide samples.\n",
		productName, quantity,
	)
	return Result{"ok": true, "product_name": productName, "quantity": quantity, "draft_email": msg}, nil
}
