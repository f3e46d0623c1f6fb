package alerts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

func TestNotifierFansOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := NewMockAlertService(ctrl)
	second := NewMockAlertService(ctrl)

	first.EXPECT().IsEnabled().Return(true)
	first.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(nil)
	second.EXPECT().IsEnabled().Return(true)
	second.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(nil)

	n := NewNotifier(first, second)

	require.NoError(t, n.Publish(context.Background(), testTransition(models.DirectionWentDown)))
}

func TestNotifierSkipsDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	disabled := NewMockAlertService(ctrl)
	disabled.EXPECT().IsEnabled().Return(false)

	n := NewNotifier(disabled)

	require.NoError(t, n.Publish(context.Background(), testTransition(models.DirectionCameUp)))
}

func TestNotifierPropagatesFirstError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failing := NewMockAlertService(ctrl)
	failing.EXPECT().IsEnabled().Return(true)
	failing.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(assert.AnError)

	healthy := NewMockAlertService(ctrl)
	healthy.EXPECT().IsEnabled().Return(true)
	healthy.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(nil)

	n := NewNotifier(failing, healthy)

	err := n.Publish(context.Background(), testTransition(models.DirectionWentDown))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNotifierIgnoresCooldown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cooling := NewMockAlertService(ctrl)
	cooling.EXPECT().IsEnabled().Return(true)
	cooling.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(errWebhookCooldown)

	n := NewNotifier(cooling)

	require.NoError(t, n.Publish(context.Background(), testTransition(models.DirectionWentDown)))
}
