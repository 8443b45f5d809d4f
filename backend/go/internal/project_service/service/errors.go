package service

import (
	"errors"

	"IntentCode/backend/go/internal/project_service/store"
)

var (
	// ErrUnauthenticated 表示没有已登录的用户，操作在任何远端调用之前被拒绝。
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrProjectNotFound 表示当前内存状态中没有该项目。
	ErrProjectNotFound = errors.New("project not found")
	// ErrFileNotFound 表示项目中没有该文件。
	ErrFileNotFound = errors.New("file not found")
	// ErrDuplicatePath 表示写入会让项目中出现重复路径。
	ErrDuplicatePath = store.ErrDuplicatePath
	// ErrInvalidFile 表示新文件缺少名称和路径。
	ErrInvalidFile = errors.New("invalid file: name or path required")
	// ErrIsDirectory 表示试图给目录写入内容。
	ErrIsDirectory = errors.New("cannot write content to a directory")
	// ErrEmptyIntention 表示提交的意图为空。
	ErrEmptyIntention = errors.New("intention must not be empty")
)
