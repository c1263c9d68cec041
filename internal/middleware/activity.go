package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edupredict-api/internal/models"
)

type activityRecorder interface {
	Insert(ctx context.Context, activity *models.LMSActivity) error
}

// pathActivityTypes maps URL segments to the interaction categories the model
// was trained on. Unmatched paths are logged as generic page views.
var pathActivityTypes = map[string]string{
	"materials":   "resource_view",
	"assessments": "assignment_view",
	"quizzes":     "quiz_attempt",
	"videos":      "video_watch",
	"files":       "file_download",
	"forum":       "forum_post",
}

// TrackActivity records an LMS interaction event for authenticated students.
// Tracking is best effort: a failed insert never fails the request. Auth and
// prediction routes are excluded so that generating a prediction does not
// perturb the features it reads.
func TrackActivity(recorder activityRecorder, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}
		path := c.Request.URL.Path
		if strings.Contains(path, "/auth/") || strings.Contains(path, "/predictions") {
			return
		}

		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims.Role != models.RoleStudent {
			return
		}

		enrollmentID := c.GetHeader("X-Enrollment-ID")
		if enrollmentID == "" {
			enrollmentID = c.Param("enrollmentId")
		}
		if enrollmentID == "" {
			return
		}

		activity := &models.LMSActivity{
			EnrollmentID: enrollmentID,
			Timestamp:    time.Now().UTC(),
			ActivityType: classifyPath(path),
		}
		if resourceID := c.Param("resourceId"); resourceID != "" {
			activity.ResourceID = &resourceID
		}

		if err := recorder.Insert(c.Request.Context(), activity); err != nil {
			logger.Warn("activity tracking failed",
				zap.String("enrollment_id", enrollmentID),
				zap.String("path", path),
				zap.Error(err))
		}
	}
}

func classifyPath(path string) string {
	for segment, activityType := range pathActivityTypes {
		if strings.Contains(path, "/"+segment) {
			return activityType
		}
	}
	return "page_view"
}
