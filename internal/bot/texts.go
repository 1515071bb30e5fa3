package bot

const (
	textCancelled    = "❌ Операция отменена. Используйте меню или введите /start (для покупателей) или /admin (для администраторов)."
	textNoSession    = "ℹ️ Диалог не начат или устарел. Введите /start (для покупателей) или /admin (для администраторов)."
	textGenericError = "❌ Произошла ошибка. Попробуйте ещё раз позже."
	textForbidden    = "❌ У вас нет прав на это действие."
	textNoAdmin      = "❌ У вас нет прав администратора."
	textStale        = "❌ Данные устарели."
	textBlacklisted  = "❌ Вы в черном списке этой организации или глобально."
	textSoldOut      = "❌ Извините, билеты этой категории закончились."
	textNotNumber    = "❌ Нужно ввести целое число. Повторите ввод:"
	textNoCard       = "УТОЧНИТЕ У ОРГАНИЗАТОРА"
)
