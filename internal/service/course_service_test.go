package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCourseService(db *gorm.DB) *CourseService {
	return NewCourseService(repository.NewCourseRepository(db), repository.NewQuizRepository(db))
}

func strPtr(s string) *string { return &s }

func TestPublishCourseRequiresModules(t *testing.T) {
	db := setupTestDB(t)
	svc := newCourseService(db)

	course, err := svc.CreateCourse(1, CourseReq{Title: strPtr("空课程")})
	require.NoError(t, err)

	_, err = svc.PublishCourse(course.ID, 1, false)
	require.True(t, util.IsValidationError(err), "a course without modules must not publish")

	moduleType := string(model.TextModule)
	_, err = svc.AddModule(course.ID, 1, false, ModuleReq{Title: strPtr("第一章"), Type: &moduleType})
	require.NoError(t, err)

	published, err := svc.PublishCourse(course.ID, 1, false)
	require.NoError(t, err)
	require.True(t, published.IsPublished)
	require.NotNil(t, published.PublishedAt)
}

func TestPublishCourseIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newCourseService(db)
	course, _ := createPublishedCourse(t, db, model.TextModule)

	again, err := svc.PublishCourse(course.ID, 1, false)
	require.NoError(t, err)
	require.True(t, again.IsPublished)
}

func TestCourseOwnershipEnforced(t *testing.T) {
	db := setupTestDB(t)
	svc := newCourseService(db)
	course, _ := createPublishedCourse(t, db, model.TextModule)

	_, err := svc.UpdateCourse(course.ID, 99, false, CourseReq{Title: strPtr("改名")})
	require.ErrorIs(t, err, util.ErrPermissionDenied)

	// 管理员不受归属限制
	updated, err := svc.UpdateCourse(course.ID, 99, true, CourseReq{Title: strPtr("改名")})
	require.NoError(t, err)
	require.Equal(t, "改名", updated.Title)
}

func TestGetCourseHidesUnpublished(t *testing.T) {
	db := setupTestDB(t)
	svc := newCourseService(db)

	course, err := svc.CreateCourse(1, CourseReq{Title: strPtr("草稿")})
	require.NoError(t, err)

	_, err = svc.GetCourse(course.ID, false)
	require.ErrorIs(t, err, util.ErrCourseNotFound)

	got, err := svc.GetCourse(course.ID, true)
	require.NoError(t, err)
	require.Equal(t, "草稿", got.Title)
}

func TestModuleBelongsToCourseCheck(t *testing.T) {
	db := setupTestDB(t)
	svc := newCourseService(db)
	courseA, _ := createPublishedCourse(t, db, model.TextModule)
	_, modulesB := createPublishedCourse(t, db, model.TextModule)

	_, err := svc.UpdateModule(courseA.ID, modulesB[0].ID, 1, false, ModuleReq{Title: strPtr("x")})
	require.ErrorIs(t, err, util.ErrModuleNotFound)
}

func TestGetCourseReturnsModulesInOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := newCourseService(db)
	course, _ := createPublishedCourse(t, db, model.TextModule)

	// 倒序创建，读取时按 order 字段排列
	require.NoError(t, db.Create(&model.CourseModule{
		CourseID: course.ID, Title: "第三章", Type: model.TextModule, Order: 2,
	}).Error)
	require.NoError(t, db.Create(&model.CourseModule{
		CourseID: course.ID, Title: "第二章", Type: model.TextModule, Order: 1,
	}).Error)

	got, err := svc.GetCourse(course.ID, false)
	require.NoError(t, err)
	require.Len(t, got.Modules, 3)
	require.Equal(t, "模块 1", got.Modules[0].Title)
	require.Equal(t, "第二章", got.Modules[1].Title)
	require.Equal(t, "第三章", got.Modules[2].Title)
}
