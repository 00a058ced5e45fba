// Package web 内嵌浏览器端聊天页面。
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFS embed.FS

// Handler 返回静态资源处理器，"/" 对应 index.html。
func Handler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// static 目录在编译期确定，不会失败
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
