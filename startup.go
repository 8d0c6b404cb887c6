package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// reportStartupError shows a blocking error dialog for failures that happen
// before the main window exists and returns err unchanged. If the dialog
// itself cannot be shown the error only reaches stderr.
func reportStartupError(err error) error {
	runErr := wails.Run(&options.App{
		Title:       "Kosmi",
		Width:       400,
		Height:      200,
		StartHidden: true,
		AssetServer: &assetserver.Options{Handler: loaderHandler()},
		OnStartup: func(ctx context.Context) {
			_, _ = runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
				Type:    runtime.ErrorDialog,
				Title:   "Application Startup Error",
				Message: fmt.Sprintf("Kosmi could not start.\n\n%v", err),
			})
			runtime.Quit(ctx)
		},
	})
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "kosmi: failed to show startup error: %v\n", runErr)
	}
	return err
}
