package machine

import (
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/e1732a364fed/p2ptcp/utils"
)

type confWatcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

func (cw *confWatcher) Close() error {
	err := cw.w.Close()
	<-cw.done
	return err
}

// WatchConfFile reloads the [proxy] section of the toml file each time the
// file changes, and hands the new proxy service to the Resolver.
// An empty file or one that fails to load is ignored. Other sections are not
// reloaded.
func (m *M) WatchConfFile(fileNamePath string) (io.Closer, error) {
	fn, err := filepath.Abs(fileNamePath)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	//editors often replace the file, which would end a watch on the file itself
	if err = w.Add(filepath.Dir(fn)); err != nil {
		w.Close()
		return nil, err
	}

	cw := &confWatcher{w: w, done: make(chan struct{})}
	go func() {
		defer close(cw.done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != fn || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				m.reloadProxyConf(fn)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if ce := utils.CanLogWarn("watch conf file"); ce != nil {
					ce.Write(zap.Error(err))
				}
			}
		}
	}()
	return cw, nil
}

func (m *M) reloadProxyConf(fn string) {
	//an empty file is most likely a write in progress
	if fi, err := os.Stat(fn); err != nil || fi.Size() == 0 {
		return
	}
	conf, err := LoadTomlConfFile(fn)
	if err != nil {
		if ce := utils.CanLogWarn("reload conf failed"); ce != nil {
			ce.Write(zap.String("file", fn), zap.Error(err))
		}
		return
	}
	pc := conf.Proxy
	if pc == nil {
		pc = &ProxyConf{}
	}
	service, err := pc.service()
	if err != nil {
		if ce := utils.CanLogWarn("reload conf failed"); ce != nil {
			ce.Write(zap.String("file", fn), zap.Error(err))
		}
		return
	}
	m.Resolver.SetService(service)
}
