//go:build js && wasm

// Command typebind-wasm binds the page's search inputs when loaded by
// wasm_exec.js. Requests are resolved against the page URL, like the
// browser would resolve a relative URL.
package main

import (
	"context"
	"syscall/js"

	"github.com/bastiangx/typebind/pkg/binder"
	"github.com/bastiangx/typebind/pkg/dom"
	"github.com/bastiangx/typebind/pkg/remote"
	"github.com/charmbracelet/log"
)

func main() {
	ctx := context.Background()

	opts := remote.DefaultOptions()
	opts.BaseURL = js.Global().Get("location").Get("href").String()
	transport, err := remote.NewTransport(opts)
	if err != nil {
		log.Errorf("typebind: %v", err)
		return
	}
	b := binder.New(binder.DefaultConfig(), transport)
	doc := dom.Browser()

	bind := func() {
		if _, err := b.Bind(ctx, doc); err != nil {
			log.Errorf("typebind: %v", err)
		}
	}

	// binding twice is harmless, so pages may also call typebindInit themselves
	js.Global().Set("typebindInit", js.FuncOf(func(this js.Value, args []js.Value) any {
		go bind()
		return nil
	}))

	if js.Global().Get("document").Get("readyState").String() == "loading" {
		done := make(chan struct{})
		var onReady js.Func
		onReady = js.FuncOf(func(this js.Value, args []js.Value) any {
			close(done)
			onReady.Release()
			return nil
		})
		js.Global().Get("document").Call("addEventListener", "DOMContentLoaded", onReady)
		<-done
	}
	bind()

	select {}
}
