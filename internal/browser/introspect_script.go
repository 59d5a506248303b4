package browser

// FieldsScript snapshots every form control in the document, hidden ones
// included.
const FieldsScript = `(() => {
	const isVisible = (el) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return rect.width > 0 &&
			rect.height > 0 &&
			style.visibility !== 'hidden' &&
			style.display !== 'none';
	};

	const labelOf = (el) => {
		if (el.id) {
			const label = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (label) return (label.textContent || '').trim();
		}
		const parent = el.closest('label');
		if (parent) return (parent.textContent || '').trim();
		return null;
	};

	return Array.from(document.querySelectorAll('input, select, textarea')).map((el) => ({
		name: el.getAttribute('name'),
		id: el.getAttribute('id'),
		placeholder: el.getAttribute('placeholder'),
		type: el.getAttribute('type') || el.tagName.toLowerCase(),
		value: el.value || '',
		tagName: el.tagName.toLowerCase(),
		visible: isVisible(el),
		required: el.hasAttribute('required'),
		label: labelOf(el),
		className: typeof el.className === 'string' ? el.className : '',
	}));
})()`

// ButtonsScript snapshots every clickable control. The selector is a best
// effort: id, then the first class token, then the tag name.
const ButtonsScript = `(() => {
	const isVisible = (el) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return rect.width > 0 &&
			rect.height > 0 &&
			style.visibility !== 'hidden' &&
			style.display !== 'none';
	};

	const selectorOf = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const cls = typeof el.className === 'string' ? el.className.trim() : '';
		if (cls) return '.' + cls.split(/\s+/)[0];
		return el.tagName.toLowerCase();
	};

	const nodes = document.querySelectorAll('button, input[type="submit"], input[type="button"], [role="button"]');
	return Array.from(nodes).map((el) => ({
		text: (el.textContent || '').trim() ||
			el.getAttribute('value') ||
			el.getAttribute('aria-label') ||
			el.getAttribute('title') ||
			'',
		selector: selectorOf(el),
		visible: isVisible(el),
		className: typeof el.className === 'string' ? el.className : '',
	}));
})()`
