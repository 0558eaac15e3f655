package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// watchInput runs the job again whenever the input file is written.
// Exports run one at a time on this goroutine until interrupted.
func watchInput(job *exportJob) error {
	input, err := filepath.Abs(job.input)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(input)); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	log.Println("watching", input)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != input {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Println("watch:", err)
		case <-timer.C:
			if err := job.run(); err != nil {
				log.Println(err)
			}
		case <-interrupt:
			return nil
		}
	}
}
